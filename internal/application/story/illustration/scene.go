package illustration

import (
	"context"
	"strings"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/pagination"
	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/internal/workflow/node"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

var framings = []string{"wide shot", "medium shot", "close-up", "medium wide shot"}

// SceneExtractor 页面场景抽取，结果缓存在页面上
type SceneExtractor struct {
	client  *structured.Client
	prompts *prompt.Registry
	pages   repository.StoryPageRepository
}

// NewSceneExtractor 创建场景抽取器，client 为 nil 时使用规则抽取
func NewSceneExtractor(client *structured.Client, prompts *prompt.Registry, pages repository.StoryPageRepository) *SceneExtractor {
	return &SceneExtractor{client: client, prompts: prompts, pages: pages}
}

// WithMeter 返回计量到指定计量器的副本
func (x *SceneExtractor) WithMeter(m *cost.Meter) *SceneExtractor {
	cp := *x
	if x.client != nil && x.client.Caller() != nil {
		cp.client = x.client.WithCaller(x.client.Caller().WithMeter(m))
	}
	return &cp
}

func sceneSchema(allowed []string) structured.Schema[entity.SceneDescription] {
	return structured.Schema[entity.SceneDescription]{
		Name:        "scene",
		Description: "{setting, action, mood, time_of_day, camera_framing, characters:string[], props:string[]}",
		JSONSchema: structured.Object(map[string]any{
			"setting":        structured.String(),
			"action":         structured.String(),
			"mood":           structured.String(),
			"time_of_day":    structured.String(),
			"camera_framing": structured.String(),
			"characters":     structured.StringArray(),
			"props":          structured.StringArray(),
		}),
		Validate: func(s *entity.SceneDescription) []string {
			var is structured.Issues
			is.Require("setting", s.Setting)
			is.Require("action", s.Action)
			is.Require("camera_framing", s.CameraFraming)
			for _, c := range s.Characters {
				if canonicalName(c, allowed) == "" {
					is.Addf("character %q is not in the allowed list", c)
				}
			}
			return is
		},
	}
}

// ExtractSceneFromPageText 返回页面场景；已缓存时直接复用，抽取失败时使用规则结果
func (x *SceneExtractor) ExtractSceneFromPageText(ctx context.Context, story *entity.Story, page *entity.StoryPage) *entity.SceneDescription {
	if page.Scene != nil {
		return page.Scene
	}

	names := characterNames(story)
	scene, err := x.extract(ctx, story, page, names)
	if err != nil {
		if err != port.ErrNotConfigured {
			metrics.PipelineFallbackTotal.WithLabelValues("scene").Inc()
			logger.Warn(ctx, "scene extraction failed, using heuristic scene", "page_index", page.PageIndex, "error", err)
		}
		scene = FallbackScene(story, page, names)
	} else {
		scene.Characters = canonicalNames(scene.Characters, names)
		if scene.Props == nil {
			scene.Props = []string{}
		}
	}

	page.Scene = scene
	if x.pages != nil && page.ID != "" {
		if err := x.pages.SaveScene(ctx, page.ID, scene); err != nil {
			logger.Warn(ctx, "failed to cache page scene", "page_index", page.PageIndex, "error", err)
		}
	}
	return scene
}

func (x *SceneExtractor) extract(ctx context.Context, story *entity.Story, page *entity.StoryPage, names []string) (*entity.SceneDescription, error) {
	if x.client == nil || !x.client.Caller().Configured() {
		return nil, port.ErrNotConfigured
	}
	system, user, err := x.prompts.Render(ctx, prompt.PromptSceneExtractV1, map[string]any{
		"setting":     storySetting(story),
		"characters":  strings.Join(names, ", "),
		"page_number": page.PageNumber(),
		"page_text":   page.Text,
	})
	if err != nil {
		return nil, err
	}
	pageNumber := page.PageNumber()
	return structured.CallJSON(ctx, x.client, sceneSchema(names), structured.Options{
		Step:        entity.CostStepSceneExtract,
		PageNumber:  &pageNumber,
		System:      system,
		User:        user,
		Temperature: port.Float32(0.2),
		MaxTokens:   500,
		Retries:     1,
	})
}

// FallbackScene 规则抽取：首句为动作，按关键词推断时间，镜头随页码轮换
func FallbackScene(story *entity.Story, page *entity.StoryPage, names []string) *entity.SceneDescription {
	action := page.Text
	if sentences := pagination.SplitSentences(page.Text); len(sentences) > 0 {
		action = sentences[0]
	}

	lower := strings.ToLower(page.Text)
	var present []string
	for _, n := range names {
		if strings.Contains(lower, strings.ToLower(n)) {
			present = append(present, n)
		}
	}
	if len(present) == 0 && len(names) > 0 {
		present = []string{names[0]}
	}

	mood := "calm and cozy"
	if story.Tone != "" {
		mood = story.Tone
	}

	return &entity.SceneDescription{
		Setting:       storySetting(story),
		Action:        node.TruncateByRunes(strings.TrimSpace(action), 240),
		Mood:          mood,
		TimeOfDay:     timeOfDay(lower),
		CameraFraming: framings[page.PageIndex%len(framings)],
		Characters:    present,
		Props:         []string{},
	}
}

func timeOfDay(lower string) string {
	switch {
	case containsAny(lower, "bed", "moon", "stars", "night", "dream", "asleep"):
		return "night"
	case containsAny(lower, "sunset", "dusk", "evening", "twilight"):
		return "evening"
	case containsAny(lower, "morning", "sunrise", "breakfast", "dawn"):
		return "morning"
	case containsAny(lower, "noon", "afternoon", "lunch"):
		return "afternoon"
	default:
		return "evening"
	}
}

func storySetting(story *entity.Story) string {
	if story.Bible != nil && story.Bible.Setting != "" {
		return story.Bible.Setting
	}
	return orDefault(story.Setting, "a cozy storybook world")
}

func characterNames(story *entity.Story) []string {
	if story.Bible == nil {
		return nil
	}
	return story.Bible.CharacterNames()
}

func canonicalName(name string, allowed []string) string {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(name), a) {
			return a
		}
	}
	return ""
}

func canonicalNames(in, allowed []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, n := range in {
		if c := canonicalName(n, allowed); c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
