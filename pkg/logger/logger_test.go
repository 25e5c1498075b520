package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextAddsStoryFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", "json")
	t.Cleanup(func() { Init("info", "json") })

	ctx := WithStory(context.Background(), "story-1")
	ctx = WithContext(ctx, PageIndexKey, 3)
	Info(ctx, "page ready")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "page ready", line["msg"])
	assert.Equal(t, "story-1", line["story_id"])
	assert.EqualValues(t, 3, line["page_index"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("warning").String())
	assert.Equal(t, "INFO", parseLevel("unknown").String())
}
