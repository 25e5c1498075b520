package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/workflow/port"
)

func TestMessage_PayloadRoundTrip(t *testing.T) {
	job := port.IllustrationJob{StoryID: "s1", RunID: "r1", LeaseToken: "t1"}
	msg, err := NewMessage(job.RunID, MessageTypeIllustrationRun, job.StoryID, job)
	require.NoError(t, err)
	msg.SetMetadata("request_id", "req-1")

	var got port.IllustrationJob
	require.NoError(t, msg.UnmarshalPayload(&got))
	assert.Equal(t, job, got)
	assert.Equal(t, "req-1", msg.GetMetadata("request_id"))
	assert.Equal(t, "", (&Message{}).GetMetadata("missing"))
}

func TestBackoff_CappedAtMax(t *testing.T) {
	b := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, b.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, b.CalculateBackoff(1))
	assert.Equal(t, 4*time.Second, b.CalculateBackoff(2))
	assert.Equal(t, 5*time.Second, b.CalculateBackoff(3))
	assert.Equal(t, 5*time.Second, b.CalculateBackoff(10))
}

func TestBackoffFromConfig_Defaults(t *testing.T) {
	b := BackoffFromConfig(config.BackoffConfig{Initial: 500 * time.Millisecond})
	assert.Equal(t, 500*time.Millisecond, b.Initial)
	assert.Equal(t, time.Minute, b.Max)
	assert.Equal(t, 2.0, b.Multiplier)
}

func TestStreamNames(t *testing.T) {
	assert.Equal(t, "dlq:stream:illustration:run", StreamIllustrationRun.DLQStream())
	assert.Equal(t, ConsumerGroup("bedtime-illustrator"), IllustratorGroup("bedtime"))
	assert.Equal(t, ConsumerGroup("cg-illustrator"), IllustratorGroup(""))
}
