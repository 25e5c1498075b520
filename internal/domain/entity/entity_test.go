package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSpark(t *testing.T) {
	assert.Equal(t, SparkMystery, ParseSpark(" Mystery "))
	assert.Equal(t, SparkMagic, ParseSpark("magic"))
	assert.Equal(t, SparkAdventure, ParseSpark("space-opera"))
}

func TestStoryPageLifecycle(t *testing.T) {
	p := &StoryPage{PageIndex: 2, ImageStatus: ImageStatusPending}
	assert.True(t, p.NeedsImage())
	assert.Equal(t, 3, p.PageNumber())

	p.MarkGenerating()
	assert.False(t, p.NeedsImage())

	p.MarkFailed("rate limited")
	assert.True(t, p.NeedsImage())
	assert.Equal(t, "rate limited", p.ErrorMessage)

	p.MarkReady("stories/s/pages/2.png", "https://cdn/2.png", "prompt", []string{"id-1"}, 0.04)
	assert.Equal(t, ImageStatusReady, p.ImageStatus)
	assert.Empty(t, p.ErrorMessage)
	assert.InDelta(t, 0.04, p.CostUSD, 1e-9)
}

func TestIllustrationRunComplete(t *testing.T) {
	r := NewIllustrationRun("story-1")
	r.Start(10)
	earlier := r.StartedAt.Add(-2 * time.Second)
	r.StartedAt = &earlier

	r.Complete(8, 2, true)
	assert.Equal(t, RunStatusCompleted, r.Status)
	assert.Equal(t, 8, r.PagesReady)
	assert.Equal(t, 2, r.PagesFailed)
	assert.GreaterOrEqual(t, r.DurationMs, 2000)
}

func TestLedgerCloneIsIndependent(t *testing.T) {
	l := ContinuityLedger{EstablishedFacts: []string{"a"}, OpenThreads: []string{"b"}}
	c := l.Clone()
	c.EstablishedFacts[0] = "changed"
	assert.Equal(t, "a", l.EstablishedFacts[0])
}
