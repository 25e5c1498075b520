package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/llmcall"
	"bedtime-story-api/internal/application/story/plan"
	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
)

func newEngine(gen port.TextGenerator) *Engine {
	prompts := prompt.NewRegistry()
	var client *structured.Client
	if gen != nil {
		client = structured.NewClient(llmcall.New(gen, cost.NewMeter(nil, nil)), prompts).WithRetryBase(time.Millisecond)
	}
	return NewEngine(client, prompts, config.DraftConfig{}, config.RepetitionConfig{}, 1)
}

func TestGetWordTargets(t *testing.T) {
	w := GetWordTargets(10)
	assert.Equal(t, WordTargets{Target: 1700, Min: 1445, Max: 1955}, w)

	page := PageTargets(w, 20, 80)
	assert.Equal(t, 85, page.Target)
	assert.Equal(t, 68, page.Min)
	assert.Equal(t, 102, page.Max)

	assert.Equal(t, 80, PageTargets(GetWordTargets(1), 4, 80).Target)
}

func TestMergeLedgerDedupesAndCaps(t *testing.T) {
	base := entity.ContinuityLedger{
		EstablishedFacts: []string{"The moon is blue", "Mia has a red kite"},
		OpenThreads:      []string{"Where is the lost key?", "Who sings at night?"},
	}
	got := MergeLedger(base, LedgerUpdate{
		NewFacts:        []string{"the moon is BLUE", "Mia found a shell", ""},
		NewOpenThreads:  []string{"Will the boat float?"},
		ResolvedThreads: []string{"where is the lost key?"},
	}, 2, 30)

	assert.Equal(t, []string{"the moon is BLUE", "Mia found a shell"}, got.EstablishedFacts)
	assert.Equal(t, []string{"Who sings at night?", "Will the boat float?"}, got.OpenThreads)
	assert.Len(t, base.EstablishedFacts, 2, "base ledger must not be mutated")
}

func TestMergeLedgerEvictsOldestFirst(t *testing.T) {
	var ledger entity.ContinuityLedger
	for i := 0; i < 70; i++ {
		ledger = MergeLedger(ledger, LedgerUpdate{NewFacts: []string{fmt.Sprintf("fact %d", i)}}, 60, 30)
	}
	require.Len(t, ledger.EstablishedFacts, 60)
	assert.Equal(t, "fact 10", ledger.EstablishedFacts[0])
	assert.Equal(t, "fact 69", ledger.EstablishedFacts[59])
}

func TestDetectRepetition(t *testing.T) {
	repeated := strings.Repeat("The little fox hopped over the sleepy log. ", 3)
	r := DetectRepetition(repeated, DefaultRepetitionThresholds)
	assert.True(t, r.HasProblem)
	assert.Greater(t, r.TrigramRepeatRatio, 0.0)
	assert.NotEmpty(t, r.RepeatedTrigrams)

	clean := DetectRepetition("One bright star rose.\n\nA quiet owl watched the garden from an old oak.", DefaultRepetitionThresholds)
	assert.False(t, clean.HasProblem)
	assert.Zero(t, clean.TrigramRepeatRatio)

	dup := DetectRepetition(uniqueText("a", 10)+"\n\n"+uniqueText("b", 10)+"\n\n  "+strings.ToUpper(uniqueText("a", 10)), RepetitionThresholds{TrigramRatio: 1})
	assert.True(t, dup.HasProblem)
	assert.Len(t, dup.DuplicateParagraphs, 1)
}

func TestDraftFallbackMeetsWordTargets(t *testing.T) {
	in := plan.Input{
		Spark:         entity.SparkAdventure,
		LengthMinutes: 10,
		Characters:    []plan.Character{{Name: "Leo", Role: "hero", ProfileKind: entity.ProfileKindKid, ProfileID: "k1"}},
	}
	sp, err := plan.NewPlanner(nil, prompt.NewRegistry(), config.PlannerConfig{}).GenerateStoryPlan(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 20, sp.BeatSheet.PageCount)

	res, err := newEngine(nil).Draft(context.Background(), sp, 10)
	require.NoError(t, err)
	require.Len(t, res.Pages, 20)

	targets := GetWordTargets(10)
	assert.True(t, targets.Contains(res.WordCount), "word count %d outside %+v", res.WordCount, targets)
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "below the minimum")
	}
	assert.Equal(t, strings.Join(res.Pages, "\n\n"), res.StoryText)
}

func TestDraftUsesCorrectedTextAndMergesLedger(t *testing.T) {
	sp := plan.FallbackPlan(plan.Input{Characters: []plan.Character{{Name: "Ada"}}}, 4)
	corrected := uniqueText("fixed", 85)

	gen := newStepGen(func(step string, n int, req port.TextRequest) (string, error) {
		switch step {
		case string(entity.CostStepPageDraft):
			return uniqueText(fmt.Sprintf("p%d", n), 85), nil
		case string(entity.CostStepPageValidate):
			if n == 2 {
				return fmt.Sprintf(`{"ok":false,"issues":["new entity"],"corrected_text":%q}`, corrected), nil
			}
			return `{"ok":true,"issues":[],"corrected_text":""}`, nil
		case string(entity.CostStepLedgerUpdate):
			return fmt.Sprintf(`{"new_facts":["fact %d"],"new_open_threads":[],"resolved_threads":[]}`, n), nil
		}
		return "", errors.New("unexpected step " + step)
	})

	res, err := newEngine(gen).Draft(context.Background(), sp, 2)
	require.NoError(t, err)
	require.Len(t, res.Pages, 4)
	assert.Equal(t, corrected, res.Pages[1])
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 340, res.WordCount)
	assert.Subset(t, res.Ledger.EstablishedFacts, []string{"fact 1", "fact 2", "fact 3", "fact 4"})
	assert.Equal(t, 4, gen.count(string(entity.CostStepPageDraft)))
	assert.Zero(t, gen.count(string(entity.CostStepRepetitionRewrite)))
}

func TestDraftRegeneratesWhenValidationHasNoText(t *testing.T) {
	sp := plan.FallbackPlan(plan.Input{Characters: []plan.Character{{Name: "Ada"}}}, 4)
	var lastUser string

	gen := newStepGen(func(step string, n int, req port.TextRequest) (string, error) {
		switch step {
		case string(entity.CostStepPageDraft):
			lastUser = req.User
			return uniqueText(fmt.Sprintf("p%d", n), 85), nil
		case string(entity.CostStepPageValidate):
			if n == 1 {
				return `{"ok":false,"issues":["tense drift"],"corrected_text":""}`, nil
			}
			return `{"ok":true,"issues":[],"corrected_text":""}`, nil
		}
		return `{"new_facts":[],"new_open_threads":[],"resolved_threads":[]}`, nil
	})

	res, err := newEngine(gen).Draft(context.Background(), sp, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, gen.count(string(entity.CostStepPageDraft)))
	assert.Equal(t, uniqueText("p2", 85), res.Pages[0])
	assert.NotContains(t, lastUser, "tense drift")
}

func TestDraftRewritesRepetition(t *testing.T) {
	sp := plan.FallbackPlan(plan.Input{Characters: []plan.Character{{Name: "Ada"}}}, 4)
	same := uniqueText("same", 85)

	gen := newStepGen(func(step string, n int, req port.TextRequest) (string, error) {
		switch step {
		case string(entity.CostStepPageDraft):
			return same, nil
		case string(entity.CostStepPageValidate):
			return `{"ok":true,"issues":[],"corrected_text":""}`, nil
		case string(entity.CostStepLedgerUpdate):
			return `{"new_facts":[],"new_open_threads":[],"resolved_threads":[]}`, nil
		case string(entity.CostStepRepetitionRewrite):
			return fmt.Sprintf(`{"pages":[%q,%q,%q,%q]}`,
				uniqueText("r1", 85), uniqueText("r2", 85), uniqueText("r3", 85), uniqueText("r4", 85)), nil
		}
		return "", errors.New("unexpected step " + step)
	})

	res, err := newEngine(gen).Draft(context.Background(), sp, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.count(string(entity.CostStepRepetitionRewrite)))
	assert.False(t, res.Repetition.HasProblem)
	assert.Equal(t, uniqueText("r3", 85), res.Pages[2])
	assert.Empty(t, res.Warnings)
}

func TestDraftWarnsWhenRepetitionPersists(t *testing.T) {
	sp := plan.FallbackPlan(plan.Input{Characters: []plan.Character{{Name: "Ada"}}}, 4)
	same := uniqueText("same", 85)

	gen := newStepGen(func(step string, n int, req port.TextRequest) (string, error) {
		switch step {
		case string(entity.CostStepPageDraft):
			return same, nil
		case string(entity.CostStepRepetitionRewrite):
			return fmt.Sprintf(`{"pages":[%q,%q,%q,%q]}`, same, same, same, same), nil
		}
		return `{"ok":true,"issues":[],"corrected_text":"","new_facts":[],"new_open_threads":[],"resolved_threads":[]}`, nil
	})

	res, err := newEngine(gen).Draft(context.Background(), sp, 2)
	require.NoError(t, err)
	require.Len(t, res.Pages, 4)
	assert.True(t, res.Repetition.HasProblem)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "repetition")
}

func TestDraftFallsBackOnProviderError(t *testing.T) {
	sp := plan.FallbackPlan(plan.Input{Characters: []plan.Character{{Name: "Ada"}}}, 4)
	gen := newStepGen(func(step string, n int, req port.TextRequest) (string, error) {
		if step == string(entity.CostStepPageDraft) && n == 1 {
			return "", &port.ProviderError{Provider: "fake", StatusCode: 400, Message: "bad"}
		}
		switch step {
		case string(entity.CostStepPageDraft):
			return uniqueText(fmt.Sprintf("p%d", n), 85), nil
		case string(entity.CostStepPageValidate):
			return `{"ok":true,"issues":[],"corrected_text":""}`, nil
		}
		return `{"new_facts":[],"new_open_threads":[],"resolved_threads":[]}`, nil
	})

	res, err := newEngine(gen).Draft(context.Background(), sp, 2)
	require.NoError(t, err)
	require.Len(t, res.Pages, 4)
	assert.Contains(t, res.Pages[0], "Ada")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "page 1")
}

func TestDraftPadsShortStory(t *testing.T) {
	sp := plan.FallbackPlan(plan.Input{Characters: []plan.Character{{Name: "Ada"}}}, 4)
	gen := newStepGen(func(step string, n int, req port.TextRequest) (string, error) {
		switch step {
		case string(entity.CostStepPageDraft):
			return uniqueText(fmt.Sprintf("p%d", n), 60), nil
		case string(entity.CostStepPageValidate):
			return `{"ok":true,"issues":[],"corrected_text":""}`, nil
		}
		return `{"new_facts":[],"new_open_threads":[],"resolved_threads":[]}`, nil
	})

	res, err := newEngine(gen).Draft(context.Background(), sp, 2)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.WordCount, GetWordTargets(2).Min)
	assert.Contains(t, res.Pages[3], "night")
}
