package illustration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/identity"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
)

const storyID = "story-1"

func testStory() *entity.Story {
	text := strings.Join([]string{
		"Pip packed a tiny lantern. The garden was quiet.",
		"Pip waved at the moon. The moon waved back.",
		"Pip heard a storm drum far away. Clouds rolled over the hill.",
		"Pip hid under a big leaf. The rain tapped softly.",
		"Pip walked home along the path. The stars came out.",
		"Pip climbed into bed. Goodnight, Pip.",
	}, "\n\n")
	return &entity.Story{
		ID:            storyID,
		Title:         "Pip and the Moon",
		StoryText:     text,
		LengthMinutes: 2,
		AudienceAge:   "4-6",
		Tone:          "calm and cozy",
		Setting:       "a moonlit garden",
		Bible: &entity.StoryBible{
			Setting:    "a moonlit garden",
			Characters: []entity.BibleCharacter{{Name: "Pip", Role: "hero"}},
		},
		Status: entity.StoryStatusDraft,
	}
}

type fixture struct {
	o          *Orchestrator
	dispatcher *InProcessDispatcher
	stories    *memStories
	pages      *memPages
	runs       *memRuns
	lease      *memLease
	images     *scriptedImages
	blobs      *memBlobs
	bibles     *memBibles
	outfits    *memOutfits
	styles     *memCache
	costs      *cost.Collector
}

type fixtureOption func(f *fixture, cfg *Config)

func withCover() fixtureOption {
	return func(_ *fixture, cfg *Config) { cfg.GenerateCover = true }
}

func withStory(story *entity.Story) fixtureOption {
	return func(f *fixture, _ *Config) { f.stories = newMemStories(story) }
}

func withIdentities() fixtureOption {
	return func(f *fixture, _ *Config) { f.bibles = &memBibles{} }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		stories: newMemStories(testStory()),
		pages:   &memPages{},
		runs:    newMemRuns(),
		lease:   newMemLease(),
		images:  &scriptedImages{},
		blobs:   &memBlobs{},
		outfits: &memOutfits{},
		styles:  &memCache{},
		costs:   &cost.Collector{},
	}
	cfg := Config{BackoffBase: time.Millisecond, LeaseTTL: time.Minute}
	for _, opt := range opts {
		opt(f, &cfg)
	}

	meter := cost.NewMeter(nil, nil).WithCallback(f.costs.Add)
	var resolver *identity.Resolver
	if f.bibles != nil {
		resolver = identity.NewResolver(nil, f.bibles, f.outfits, nil, prompt.NewRegistry(), f.images, f.blobs, meter, identity.Options{})
	}
	scenes := NewSceneExtractor(nil, prompt.NewRegistry(), f.pages)
	f.o = NewOrchestrator(f.stories, f.pages, f.runs, resolver, scenes, f.images, f.blobs, f.lease, f.styles, meter, cfg)
	f.dispatcher = NewInProcessDispatcher(f.o.Run)
	f.o.SetDispatcher(f.dispatcher)
	return f
}

func (f *fixture) startAndWait(t *testing.T) *StartResult {
	t.Helper()
	res, err := f.o.StartStoryIllustrationGeneration(context.Background(), storyID)
	require.NoError(t, err)
	f.dispatcher.Wait()
	return res
}

func failOn(marker string, err func(attempt int) error) func(string, int) error {
	return func(p string, attempt int) error {
		if strings.Contains(p, marker) {
			return err(attempt)
		}
		return nil
	}
}

func TestStartSkipsWhenLeaseHeld(t *testing.T) {
	f := newFixture(t)
	_, ok, err := f.lease.Acquire(context.Background(), LeaseKey(storyID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.o.StartStoryIllustrationGeneration(context.Background(), storyID)
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, 0, f.runs.count())
	assert.Equal(t, 0, f.images.calls())
}

func TestStartUnknownStory(t *testing.T) {
	f := newFixture(t)
	_, err := f.o.StartStoryIllustrationGeneration(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStoryNotFound)
	assert.False(t, f.lease.held(LeaseKey("missing")))
}

func TestRunIllustratesAllPagesAndSyncsCover(t *testing.T) {
	f := newFixture(t)
	res := f.startAndWait(t)
	require.True(t, res.Started)

	pages, err := f.pages.ListByStory(context.Background(), storyID)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i, p.PageIndex)
		assert.Equal(t, entity.ImageStatusReady, p.ImageStatus)
		assert.Equal(t, 1, p.Attempts)
		assert.NotNil(t, p.Scene)
		assert.Contains(t, p.ImagePrompt, "STYLE BIBLE")
	}
	assert.Equal(t, "https://cdn.test/stories/story-1/pages/000.png", pages[0].ImageURL)

	story := f.stories.get(storyID)
	assert.Equal(t, entity.CoverSourcePage0, story.CoverSource)
	assert.Equal(t, pages[0].ImagePath, story.CoverImagePath)
	assert.Equal(t, entity.StoryStatusIllustrated, story.Status)
	assert.False(t, f.lease.held(LeaseKey(storyID)))

	run, err := f.runs.GetByID(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.PagesTotal)
	assert.Equal(t, 3, run.PagesReady)
	assert.True(t, run.CoverReady)

	rows := f.costs.Rows()
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, entity.CostStepPageImage, r.Step)
		require.NotNil(t, r.StoryID)
		assert.Equal(t, storyID, *r.StoryID)
		assert.NotNil(t, r.PageNumber)
	}
}

func TestBatchesRunSequentiallyWithBoundedConcurrency(t *testing.T) {
	story := testStory()
	story.LengthMinutes = 5
	paragraphs := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		paragraphs = append(paragraphs, fmt.Sprintf("Pip counted star number %d. It twinkled softly.", i))
	}
	story.StoryText = strings.Join(paragraphs, "\n\n")

	f := newFixture(t, withStory(story))
	f.images.delay = 20 * time.Millisecond
	f.startAndWait(t)

	pages, err := f.pages.ListByStory(context.Background(), storyID)
	require.NoError(t, err)
	require.Len(t, pages, 9)
	for _, p := range pages {
		assert.Equal(t, entity.ImageStatusReady, p.ImageStatus)
	}

	f.images.mu.Lock()
	defer f.images.mu.Unlock()
	require.Len(t, f.images.doneAtStart, 9)
	assert.LessOrEqual(t, f.images.peak, 4)
	assert.Greater(t, f.images.peak, 1)
	for i, done := range f.images.doneAtStart {
		// 后一批的调用开始时，之前各批必须全部完成
		assert.GreaterOrEqual(t, done, (i/4)*4, "call %d started before previous batch finished", i)
	}
}

func TestPageFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	f.images.fail = failOn("storm", func(int) error {
		return &port.ProviderError{Provider: "fake", StatusCode: 400, Message: "content policy"}
	})
	f.startAndWait(t)

	failed := f.pages.byIndex(storyID, 1)
	assert.Equal(t, entity.ImageStatusFailed, failed.ImageStatus)
	assert.Equal(t, 1, failed.Attempts)
	assert.Contains(t, failed.ErrorMessage, "content policy")

	assert.Equal(t, entity.ImageStatusReady, f.pages.byIndex(storyID, 0).ImageStatus)
	assert.Equal(t, entity.ImageStatusReady, f.pages.byIndex(storyID, 2).ImageStatus)

	story := f.stories.get(storyID)
	assert.Equal(t, entity.StoryStatusDraft, story.Status)
	assert.Equal(t, entity.CoverSourcePage0, story.CoverSource)

	run, err := f.runs.LatestByStory(context.Background(), storyID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.PagesReady)
	assert.Equal(t, 1, run.PagesFailed)
}

func TestTransientErrorsAreRetried(t *testing.T) {
	f := newFixture(t)
	f.images.fail = failOn("storm", func(attempt int) error {
		if attempt < 3 {
			return &port.ProviderError{Provider: "fake", StatusCode: 503, Message: "overloaded"}
		}
		return nil
	})
	f.startAndWait(t)

	page := f.pages.byIndex(storyID, 1)
	assert.Equal(t, entity.ImageStatusReady, page.ImageStatus)
	assert.Equal(t, 3, page.Attempts)
	assert.Equal(t, 5, f.images.calls())
	assert.Len(t, f.costs.Rows(), 5)
}

func TestTransientErrorsStopAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.images.fail = failOn("storm", func(int) error {
		return &port.ProviderError{Provider: "fake", StatusCode: 429, Message: "rate limited"}
	})
	f.startAndWait(t)

	page := f.pages.byIndex(storyID, 1)
	assert.Equal(t, entity.ImageStatusFailed, page.ImageStatus)
	assert.Equal(t, 3, page.Attempts)
	assert.Contains(t, page.ErrorMessage, "rate limited")
}

func TestSecondRunOnlyRetriesUnfinishedPages(t *testing.T) {
	f := newFixture(t)
	f.images.fail = failOn("storm", func(int) error {
		return &port.ProviderError{Provider: "fake", StatusCode: 400, Message: "bad request"}
	})
	f.startAndWait(t)
	require.Equal(t, 3, f.images.calls())

	// 模拟崩溃任务遗留的 generating 页面
	last := f.pages.byIndex(storyID, 2)
	require.NoError(t, f.pages.UpdateStatus(context.Background(), last.ID, entity.ImageStatusGenerating, ""))

	f.images.fail = nil
	res := f.startAndWait(t)
	require.True(t, res.Started)

	assert.Equal(t, 5, f.images.calls())
	for i := 0; i < 3; i++ {
		assert.Equal(t, entity.ImageStatusReady, f.pages.byIndex(storyID, i).ImageStatus)
	}
	assert.Equal(t, entity.StoryStatusIllustrated, f.stories.get(storyID).Status)
}

func TestCoverGeneratedBeforePages(t *testing.T) {
	f := newFixture(t, withCover())
	f.startAndWait(t)

	require.Equal(t, 4, f.images.calls())
	assert.Contains(t, f.images.prompts[0], `picture book titled "Pip and the Moon"`)

	story := f.stories.get(storyID)
	assert.Equal(t, entity.CoverSourceCall, story.CoverSource)
	assert.Equal(t, "stories/story-1/cover.png", story.CoverImagePath)

	var steps []entity.CostStep
	for _, r := range f.costs.Rows() {
		steps = append(steps, r.Step)
	}
	assert.Equal(t, entity.CostStepCoverImage, steps[0])
}

func TestRegeneratePage(t *testing.T) {
	f := newFixture(t)
	f.images.fail = failOn("storm", func(int) error {
		return &port.ProviderError{Provider: "fake", StatusCode: 400, Message: "bad request"}
	})
	f.startAndWait(t)
	require.Equal(t, entity.ImageStatusFailed, f.pages.byIndex(storyID, 1).ImageStatus)

	f.images.fail = nil
	page, err := f.o.RegeneratePage(context.Background(), storyID, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.ImageStatusReady, page.ImageStatus)
	assert.Equal(t, 2, page.Attempts)
	assert.Equal(t, entity.ImageStatusReady, f.pages.byIndex(storyID, 1).ImageStatus)
	assert.False(t, f.lease.held(LeaseKey(storyID)))

	_, err = f.o.RegeneratePage(context.Background(), storyID, 9)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestOutfitLockedByFirstRunIsReused(t *testing.T) {
	f := newFixture(t, withIdentities())
	f.startAndWait(t)

	outfits := f.outfits.all()
	require.Len(t, outfits, 1)
	first := outfits[0]
	assert.True(t, first.OutfitLock)
	assert.Equal(t, 1, f.outfits.upserts)

	_, err := f.o.RegeneratePage(context.Background(), storyID, 0)
	require.NoError(t, err)

	again := f.outfits.all()
	require.Len(t, again, 1)
	assert.Equal(t, first, again[0])
	assert.Equal(t, 1, f.outfits.upserts)
}

func TestRegeneratePageWhileRunInProgress(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.lease.Acquire(context.Background(), LeaseKey(storyID), time.Minute)
	require.NoError(t, err)

	_, err = f.o.RegeneratePage(context.Background(), storyID, 0)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestPortraitsUsedAsReferences(t *testing.T) {
	f := newFixture(t, withIdentities())
	f.startAndWait(t)

	require.Len(t, f.bibles.rows, 1)
	bible := f.bibles.rows[0]
	require.True(t, bible.HasPortrait())

	// 一次肖像 + 三页
	assert.Equal(t, 4, f.images.calls())
	for i := 0; i < 3; i++ {
		page := f.pages.byIndex(storyID, i)
		assert.Equal(t, []string{bible.ID}, []string(page.UsedReferenceImageIDs))
		assert.Contains(t, page.ImagePrompt, "Pip wears")
	}
	for _, refs := range f.images.refs[1:] {
		require.Len(t, refs, 1)
		assert.Equal(t, bible.ID, refs[0].ID)
		assert.NotEmpty(t, refs[0].Data)
	}
}

func TestStyleBibleCachedPerStory(t *testing.T) {
	f := newFixture(t)
	f.startAndWait(t)
	_, err := f.o.RegeneratePage(context.Background(), storyID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.styles.loads)
}

func TestRunReacquiresStaleToken(t *testing.T) {
	f := newFixture(t)

	err := f.o.Run(context.Background(), port.IllustrationJob{StoryID: storyID, LeaseToken: "expired-token"})
	require.NoError(t, err)

	assert.Equal(t, 3, f.images.calls())
	assert.False(t, f.lease.held(LeaseKey(storyID)), "fresh lease released after run")
}

func TestRunSkipsWhenAnotherRunHoldsLease(t *testing.T) {
	f := newFixture(t)
	_, ok, err := f.lease.Acquire(context.Background(), LeaseKey(storyID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = f.o.Run(context.Background(), port.IllustrationJob{StoryID: storyID, LeaseToken: "redelivered"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.images.calls())
	assert.Equal(t, 0, f.runs.count())
	assert.True(t, f.lease.held(LeaseKey(storyID)))
}
