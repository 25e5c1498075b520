// Package plan 生成故事圣经、节拍表与连续性账本
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/node"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

const (
	minPages = 4
	maxPages = 30
)

// Character 规划输入中的角色
type Character struct {
	Name        string
	Role        string
	Traits      []string
	ProfileKind entity.ProfileKind
	ProfileID   string
}

// Input 规划输入
type Input struct {
	Spark         entity.SparkType
	LengthMinutes int
	AudienceAge   string
	Tone          string
	Setting       string
	Season        string
	TitleHint     string
	Prompt        string
	Characters    []Character
}

// PageCountForMinutes 朗读时长对应的页数，clamp(minutes*2, 4, 30)
func PageCountForMinutes(minutes int) int {
	n := minutes * 2
	if n < minPages {
		return minPages
	}
	if n > maxPages {
		return maxPages
	}
	return n
}

// Planner 故事规划器
type Planner struct {
	client  *structured.Client
	prompts *prompt.Registry
	cfg     config.PlannerConfig
}

// NewPlanner 创建规划器
func NewPlanner(client *structured.Client, prompts *prompt.Registry, cfg config.PlannerConfig) *Planner {
	return &Planner{client: client, prompts: prompts, cfg: cfg}
}

// WithMeter 返回计量到指定计量器的副本
func (p *Planner) WithMeter(m *cost.Meter) *Planner {
	cp := *p
	if p.client != nil && p.client.Caller() != nil {
		cp.client = p.client.WithCaller(p.client.Caller().WithMeter(m))
	}
	return &cp
}

// GenerateStoryPlan 生成故事规划
// 模型调用全部失败时返回确定性兜底规划，仅在 ctx 取消时返回错误
func (p *Planner) GenerateStoryPlan(ctx context.Context, in Input) (*entity.StoryPlan, error) {
	in = withDefaults(in)
	pageCount := PageCountForMinutes(in.LengthMinutes)

	result, err := p.callModel(ctx, in, pageCount)
	if err == nil {
		normalize(result, in, pageCount)
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if errors.Is(err, port.ErrNotConfigured) {
		logger.Info(ctx, "story planner using template plan, no text model configured")
	} else {
		logger.Warn(ctx, "story planner falling back to template plan", "error", err)
	}
	metrics.PipelineFallbackTotal.WithLabelValues("plan").Inc()
	return FallbackPlan(in, pageCount), nil
}

func (p *Planner) callModel(ctx context.Context, in Input, pageCount int) (*entity.StoryPlan, error) {
	if p.client == nil {
		return nil, port.ErrNotConfigured
	}
	arc := arcFor(in.Spark)
	system, user, err := p.prompts.Render(ctx, prompt.PromptStoryPlanV1, map[string]any{
		"spark":        fmt.Sprintf("%s (%s)", in.Spark, arc.Summary),
		"spark_rules":  node.BulletList(arc.Checklist, "- none"),
		"audience_age": in.AudienceAge,
		"tone":         in.Tone,
		"setting":      in.Setting,
		"season":       valueOr(in.Season, "any"),
		"title_hint":   valueOr(in.TitleHint, "none"),
		"page_count":   pageCount,
		"characters":   rosterBlock(in.Characters),
		"user_prompt":  valueOr(in.Prompt, "none"),
	})
	if err != nil {
		return nil, err
	}

	opts := structured.Options{
		Step:      entity.CostStepPlan,
		System:    system,
		User:      user,
		MaxTokens: p.cfg.MaxTokens,
		Retries:   p.cfg.Retries,
	}
	if p.cfg.Temperature > 0 {
		opts.Temperature = port.Float32(float32(p.cfg.Temperature))
	}
	return structured.CallJSON(ctx, p.client, planSchema(pageCount), opts)
}

func withDefaults(in Input) Input {
	if in.Spark == "" {
		in.Spark = entity.SparkAdventure
	}
	if in.LengthMinutes <= 0 {
		in.LengthMinutes = 5
	}
	in.AudienceAge = valueOr(in.AudienceAge, "4-6")
	in.Tone = valueOr(in.Tone, "calm and cozy")
	in.Setting = valueOr(in.Setting, "a quiet village at the edge of a friendly forest")

	chars := make([]Character, 0, len(in.Characters))
	for _, c := range in.Characters {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		c.Name = strings.TrimSpace(c.Name)
		c.Role = valueOr(c.Role, "friend")
		chars = append(chars, c)
	}
	if len(chars) == 0 {
		chars = append(chars, Character{Name: "Pip", Role: "hero", Traits: []string{"curious", "kind"}})
	}
	in.Characters = chars
	return in
}

func rosterBlock(chars []Character) string {
	var b strings.Builder
	for _, c := range chars {
		b.WriteString("- ")
		b.WriteString(c.Name)
		b.WriteString(" (")
		b.WriteString(c.Role)
		b.WriteString(")")
		if len(c.Traits) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(c.Traits, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// normalize 重排页码，补齐角色与允许实体，清理空值
func normalize(sp *entity.StoryPlan, in Input, pageCount int) {
	sp.FromFallback = false
	sp.BeatSheet.PageCount = pageCount
	for i := range sp.BeatSheet.Pages {
		b := &sp.BeatSheet.Pages[i]
		b.PageNumber = i + 1
		b.MustInclude = compact(b.MustInclude)
		b.MustNotInclude = compact(b.MustNotInclude)
	}

	bible := &sp.Bible
	have := make(map[string]bool, len(bible.Characters))
	for _, c := range bible.Characters {
		have[strings.ToLower(c.Name)] = true
	}
	for _, c := range in.Characters {
		if !have[strings.ToLower(c.Name)] {
			bible.Characters = append(bible.Characters, entity.BibleCharacter{Name: c.Name, Role: c.Role, Traits: c.Traits})
		}
	}
	for i := range bible.Characters {
		if bible.Characters[i].Traits == nil {
			bible.Characters[i].Traits = []string{}
		}
	}
	bible.Rules = compact(bible.Rules)
	bible.Forbidden = compact(bible.Forbidden)
	bible.AllowedEntities = dedupeFold(append(bible.CharacterNames(), bible.AllowedEntities...))

	sp.Ledger.EstablishedFacts = dedupeFold(sp.Ledger.EstablishedFacts)
	sp.Ledger.OpenThreads = dedupeFold(sp.Ledger.OpenThreads)
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupeFold(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
