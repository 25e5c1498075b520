package story

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/draft"
	"bedtime-story-api/internal/application/story/llmcall"
	"bedtime-story-api/internal/application/story/plan"
	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
)

type memStoryRepo struct {
	mu   sync.Mutex
	rows []*entity.Story
}

func (m *memStoryRepo) Create(_ context.Context, s *entity.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = "story-" + string(rune('a'+len(m.rows)))
	cp := *s
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memStoryRepo) GetByID(_ context.Context, id string) (*entity.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStoryRepo) UpdateCover(context.Context, string, string, string, entity.CoverSource) error {
	return nil
}

func (m *memStoryRepo) UpdateStatus(context.Context, string, entity.StoryStatus) error {
	return nil
}

type memCostRepo struct {
	mu   sync.Mutex
	rows []*entity.GenerationCost
}

func (m *memCostRepo) Create(_ context.Context, row *entity.GenerationCost) error {
	return m.CreateBatch(context.Background(), []*entity.GenerationCost{row})
}

func (m *memCostRepo) CreateBatch(_ context.Context, rows []*entity.GenerationCost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memCostRepo) ListByStory(context.Context, string, repository.Pagination) (*repository.PagedResult[*entity.GenerationCost], error) {
	return nil, nil
}

func (m *memCostRepo) SumByStory(context.Context, string) (float64, error) {
	return 0, nil
}

type failingGen struct{}

func (failingGen) Generate(context.Context, port.TextRequest) (*port.TextResponse, error) {
	return nil, &port.ProviderError{Provider: "fake", StatusCode: 400, Message: "bad request"}
}

func newGenerator(gen port.TextGenerator, stories repository.StoryRepository, costs repository.GenerationCostRepository) *StoryGenerator {
	prompts := prompt.NewRegistry()
	var client *structured.Client
	if gen != nil {
		client = structured.NewClient(llmcall.New(gen, cost.NewMeter(nil, nil)), prompts)
	}
	planner := plan.NewPlanner(client, prompts, config.PlannerConfig{Retries: 2})
	engine := draft.NewEngine(client, prompts, config.DraftConfig{}, config.RepetitionConfig{}, 1)
	return NewStoryGenerator(planner, engine, stories, costs, nil)
}

func kidInput(minutes int) *StoryGenerateInput {
	return &StoryGenerateInput{
		Spark:         "adventure",
		LengthMinutes: minutes,
		AudienceAge:   "4-6",
		Characters: []StoryCharacterInput{
			{Name: "Mia", Role: "hero", ProfileKind: entity.ProfileKindKid, ProfileID: "kid-1"},
		},
	}
}

func TestGenerateWithoutModelUsesTemplates(t *testing.T) {
	stories := &memStoryRepo{}
	g := newGenerator(nil, stories, &memCostRepo{})

	out, err := g.Generate(context.Background(), kidInput(10))
	require.NoError(t, err)

	assert.Equal(t, 20, out.Plan.BeatSheet.PageCount)
	require.Len(t, out.Pages, 20)
	for i, p := range out.Pages {
		assert.Equal(t, i+1, p.PageNumber)
		assert.NotEmpty(t, p.Text)
	}
	assert.NotEmpty(t, out.Plan.Bible.Characters)

	targets := draft.GetWordTargets(10)
	assert.GreaterOrEqual(t, out.WordCount, targets.Min)
	assert.LessOrEqual(t, out.WordCount, targets.Max)
	for _, w := range out.Warnings {
		assert.NotContains(t, w, "below the minimum")
	}

	assert.Greater(t, out.SceneCount, 0)
	assert.LessOrEqual(t, out.SceneCount, 19)
	assert.Empty(t, out.Costs)

	require.Len(t, stories.rows, 1)
	saved := stories.rows[0]
	assert.Equal(t, out.StoryID, saved.ID)
	assert.Equal(t, entity.SparkAdventure, saved.Spark)
	assert.Equal(t, []entity.CastMember{{Name: "Mia", ProfileKind: entity.ProfileKindKid, ProfileID: "kid-1"}}, saved.Cast)
	assert.Equal(t, out.StoryText, saved.StoryText)
}

func TestGenerateFlushesCostsAfterSave(t *testing.T) {
	stories := &memStoryRepo{}
	costs := &memCostRepo{}
	g := newGenerator(failingGen{}, stories, costs)

	out, err := g.Generate(context.Background(), kidInput(2))
	require.NoError(t, err)

	require.NotEmpty(t, out.Costs)
	assert.Equal(t, entity.CostStepPlan, out.Costs[0].Step)
	assert.Len(t, costs.rows, len(out.Costs))
	for _, r := range costs.rows {
		require.NotNil(t, r.StoryID)
		assert.Equal(t, out.StoryID, *r.StoryID)
	}
	for _, r := range out.Costs {
		require.NotNil(t, r.StoryID)
		assert.Equal(t, out.StoryID, *r.StoryID)
	}

	joined := strings.Join(out.Warnings, "\n")
	assert.Contains(t, joined, "draft generation failed")
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	g := newGenerator(nil, nil, nil)

	_, err := g.Generate(context.Background(), &StoryGenerateInput{LengthMinutes: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)

	in := kidInput(5)
	in.Characters[0].ProfileKind = ""
	_, err = g.Generate(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = kidInput(5)
	in.Characters[0].Name = " "
	_, err = g.Generate(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateWithoutRepositories(t *testing.T) {
	g := newGenerator(nil, nil, nil)
	out, err := g.Generate(context.Background(), kidInput(3))
	require.NoError(t, err)
	assert.Empty(t, out.StoryID)
	assert.Len(t, out.Pages, 6)
}
