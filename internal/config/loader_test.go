package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("STORY_TEST_HOST", "db.internal")

	assert.Equal(t, "host: db.internal", expandEnv("host: ${STORY_TEST_HOST}"))
	assert.Equal(t, "port: 5433", expandEnv("port: ${STORY_TEST_MISSING:5433}"))
	assert.Equal(t, "key: ", expandEnv("key: ${STORY_TEST_MISSING:}"))
	assert.Equal(t, "raw: ${STORY_TEST_MISSING}", expandEnv("raw: ${STORY_TEST_MISSING}"))
}

func TestLoadFromAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("STORY_TEST_BATCH", "6")

	base := `
pipeline:
  illustration:
    batch_size: ${STORY_TEST_BATCH:4}
pricing:
  - model: custom-model
    input: 1.5
    cached_input: 0.5
    output: 3
`
	envFile := `
pipeline:
  repetition:
    trigram_ratio: 0.05
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.test.yaml"), []byte(envFile), 0o644))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Pipeline.Illustration.BatchSize)
	assert.InDelta(t, 0.05, cfg.Pipeline.Repetition.TrigramRatio, 1e-9)
	assert.Equal(t, 3, cfg.Pipeline.Illustration.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.Illustration.BackoffBase)
	assert.Equal(t, 2, cfg.Pipeline.Planner.Retries)
	assert.Equal(t, 60, cfg.Pipeline.Draft.FactsCap)
	require.Len(t, cfg.Pricing, 1)
	assert.Equal(t, "custom-model", cfg.Pricing[0].Model)
}

func TestLoadFromMissingDirUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, "bedtime-story-api", cfg.App.Name)
	assert.Equal(t, "redis", cfg.Pipeline.Illustration.Lease)
}
