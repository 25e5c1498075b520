// Package story 组装故事生成流水线：规划、起草、落库与成本归集
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/draft"
	"bedtime-story-api/internal/application/story/pagination"
	"bedtime-story-api/internal/application/story/plan"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

const (
	minLengthMinutes = 1
	maxLengthMinutes = 60
)

// ErrInvalidInput 输入参数不合法
var ErrInvalidInput = errors.New("story: invalid input")

type StoryCharacterInput struct {
	Name        string
	Role        string
	Traits      []string
	ProfileKind entity.ProfileKind
	ProfileID   string
}

type StoryGenerateInput struct {
	FamilyID      string
	Spark         string
	LengthMinutes int
	AudienceAge   string
	Tone          string
	Setting       string
	Season        string
	TitleHint     string
	Prompt        string
	Characters    []StoryCharacterInput
}

type GeneratedPage struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

type StoryGenerateOutput struct {
	StoryID    string
	Title      string
	StoryText  string
	Pages      []GeneratedPage
	Plan       *entity.StoryPlan
	Ledger     entity.ContinuityLedger
	WordCount  int
	SceneCount int
	Warnings   []string
	Costs      []entity.GenerationCost
}

type StoryGenerator struct {
	planner *plan.Planner
	engine  *draft.Engine
	stories repository.StoryRepository
	costs   repository.GenerationCostRepository
	meter   *cost.Meter
}

// NewStoryGenerator stories 与 costs 可为 nil，此时只生成不落库
func NewStoryGenerator(
	planner *plan.Planner,
	engine *draft.Engine,
	stories repository.StoryRepository,
	costs repository.GenerationCostRepository,
	meter *cost.Meter,
) *StoryGenerator {
	if meter == nil {
		meter = cost.NewMeter(nil, nil)
	}
	return &StoryGenerator{planner: planner, engine: engine, stories: stories, costs: costs, meter: meter}
}

// Generate 同步生成一篇故事
// 成本记录先暂存，故事落库拿到 ID 后一次性写入台账
func (g *StoryGenerator) Generate(ctx context.Context, in *StoryGenerateInput) (*StoryGenerateOutput, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	spark := entity.ParseSpark(in.Spark)
	start := time.Now()

	buffer := cost.NewBufferedLedger()
	collector := &cost.Collector{}
	meter := g.meter.WithLedger(buffer).WithCallback(collector.Add)

	sp, err := g.planner.WithMeter(meter).GenerateStoryPlan(ctx, planInput(in, spark))
	if err != nil {
		metrics.StoryGenerationTotal.WithLabelValues(string(spark), "failed").Inc()
		return nil, fmt.Errorf("plan story: %w", err)
	}
	logger.Info(ctx, "story plan ready",
		"pages", sp.BeatSheet.PageCount, "characters", len(sp.Bible.Characters), "from_fallback", sp.FromFallback)

	result, err := g.engine.WithMeter(meter).Draft(ctx, sp, in.LengthMinutes)
	if err != nil {
		metrics.StoryGenerationTotal.WithLabelValues(string(spark), "failed").Inc()
		return nil, fmt.Errorf("draft story: %w", err)
	}

	title := strings.TrimSpace(sp.Bible.Title)
	if title == "" {
		title = strings.TrimSpace(in.TitleHint)
	}

	story := &entity.Story{
		FamilyID:      in.FamilyID,
		Title:         title,
		StoryText:     result.StoryText,
		LengthMinutes: in.LengthMinutes,
		Spark:         spark,
		AudienceAge:   sp.Bible.AudienceAge,
		Tone:          sp.Bible.Tone,
		Setting:       sp.Bible.Setting,
		Season:        in.Season,
		Bible:         &sp.Bible,
		BeatSheet:     &sp.BeatSheet,
		Ledger:        &result.Ledger,
		Cast:          castFor(in.Characters),
		WordCount:     result.WordCount,
		Warnings:      pq.StringArray(result.Warnings),
		Status:        entity.StoryStatusDraft,
	}
	if g.stories != nil {
		if err := g.stories.Create(ctx, story); err != nil {
			metrics.StoryGenerationTotal.WithLabelValues(string(spark), "failed").Inc()
			return nil, fmt.Errorf("save story: %w", err)
		}
		ctx = logger.WithStory(ctx, story.ID)
		if g.costs != nil {
			if err := buffer.Flush(ctx, story.ID, g.costs); err != nil {
				logger.Warn(ctx, "failed to persist generation costs", "error", err)
			}
		}
	}

	out := &StoryGenerateOutput{
		StoryID:    story.ID,
		Title:      title,
		StoryText:  result.StoryText,
		Pages:      make([]GeneratedPage, 0, len(result.Pages)),
		Plan:       sp,
		Ledger:     result.Ledger,
		WordCount:  result.WordCount,
		SceneCount: len(pagination.BuildStoryPageTexts(result.StoryText, in.LengthMinutes)),
		Warnings:   append([]string{}, result.Warnings...),
		Costs:      collector.Rows(),
	}
	for i, text := range result.Pages {
		out.Pages = append(out.Pages, GeneratedPage{PageNumber: i + 1, Text: text})
	}
	for i := range out.Costs {
		if out.Costs[i].StoryID == nil && story.ID != "" {
			id := story.ID
			out.Costs[i].StoryID = &id
		}
	}

	metrics.StoryGenerationTotal.WithLabelValues(string(spark), "ok").Inc()
	metrics.StoryGenerationDuration.WithLabelValues(string(spark)).Observe(time.Since(start).Seconds())
	metrics.StoryWordCount.Observe(float64(result.WordCount))
	logger.Info(ctx, "story generated",
		"words", result.WordCount, "warnings", len(result.Warnings), "cost_usd", collector.TotalUSD())
	return out, nil
}

func validateInput(in *StoryGenerateInput) error {
	if in == nil {
		return fmt.Errorf("%w: input is nil", ErrInvalidInput)
	}
	if in.LengthMinutes < minLengthMinutes || in.LengthMinutes > maxLengthMinutes {
		return fmt.Errorf("%w: length_minutes must be between %d and %d", ErrInvalidInput, minLengthMinutes, maxLengthMinutes)
	}
	for i, c := range in.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: characters[%d].name is required", ErrInvalidInput, i)
		}
		if (c.ProfileID == "") != (c.ProfileKind == "") {
			return fmt.Errorf("%w: characters[%d] needs both profile_kind and profile_id", ErrInvalidInput, i)
		}
	}
	return nil
}

func planInput(in *StoryGenerateInput, spark entity.SparkType) plan.Input {
	chars := make([]plan.Character, 0, len(in.Characters))
	for _, c := range in.Characters {
		chars = append(chars, plan.Character{
			Name:        strings.TrimSpace(c.Name),
			Role:        c.Role,
			Traits:      c.Traits,
			ProfileKind: c.ProfileKind,
			ProfileID:   c.ProfileID,
		})
	}
	return plan.Input{
		Spark:         spark,
		LengthMinutes: in.LengthMinutes,
		AudienceAge:   in.AudienceAge,
		Tone:          in.Tone,
		Setting:       in.Setting,
		Season:        in.Season,
		TitleHint:     in.TitleHint,
		Prompt:        in.Prompt,
		Characters:    chars,
	}
}

func castFor(chars []StoryCharacterInput) []entity.CastMember {
	var cast []entity.CastMember
	for _, c := range chars {
		if c.ProfileID == "" {
			continue
		}
		cast = append(cast, entity.CastMember{
			Name:        strings.TrimSpace(c.Name),
			ProfileKind: c.ProfileKind,
			ProfileID:   c.ProfileID,
		})
	}
	return cast
}
