package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

// StoryContext 生成服装所需的故事背景
type StoryContext struct {
	Setting string
	Season  string
	Tone    string
}

type outfitSpec struct {
	Top         string   `json:"top"`
	Bottom      string   `json:"bottom"`
	Shoes       string   `json:"shoes"`
	Accessories []string `json:"accessories"`
	Palette     []string `json:"palette"`
}

var outfitSchema = structured.Schema[outfitSpec]{
	Name:        "outfit",
	Description: "{top, bottom, shoes, accessories:string[], palette:string[]}",
	JSONSchema: structured.Object(map[string]any{
		"top":         structured.String(),
		"bottom":      structured.String(),
		"shoes":       structured.String(),
		"accessories": structured.StringArray(),
		"palette":     structured.StringArray(),
	}),
	Validate: func(o *outfitSpec) []string {
		var is structured.Issues
		is.Require("top", o.Top)
		is.RequireList("palette", o.Palette)
		if len(o.Accessories) > 3 {
			is.Addf("accessories must contain at most 3 entries, got %d", len(o.Accessories))
		}
		return is
	},
}

var (
	seasonTops = map[string][]string{
		"winter": {"chunky knit sweater", "puffy quilted jacket", "fleece-lined hoodie"},
		"summer": {"short-sleeved striped shirt", "light linen tunic", "sleeveless cotton top"},
		"autumn": {"cozy corduroy jacket", "long-sleeved plaid shirt", "soft wool cardigan"},
		"spring": {"light rain jacket", "cotton long-sleeved tee", "denim overall top"},
	}
	bottoms  = []string{"soft cotton trousers", "knee-length shorts", "rolled-up jeans", "pleated skirt with leggings"}
	shoes    = []string{"red rain boots", "canvas sneakers", "soft leather sandals", "fuzzy slippers"}
	palettes = [][]string{
		{"sky blue", "cream", "sunflower yellow"},
		{"forest green", "rust orange", "oatmeal"},
		{"lavender", "mint", "soft white"},
		{"navy", "coral", "sand"},
	}
	accessories = []string{"a knitted scarf", "a tiny backpack", "a star-shaped hair clip", "a bandana", "a woolly hat"}
	petGear     = []string{"a red collar with a round tag", "a blue bandana", "a little knitted sweater"}
)

// fallbackOutfit 按种子确定性选择的服装
func fallbackOutfit(profile *entity.CharacterProfile, sc StoryContext, seed int64) outfitSpec {
	idx := func(n int, salt int64) int { return int((seed + salt) % int64(n)) }
	palette := palettes[idx(len(palettes), 3)]

	if profile.Kind == entity.ProfileKindPet {
		return outfitSpec{
			Top:         petGear[idx(len(petGear), 0)],
			Accessories: []string{},
			Palette:     append([]string{}, palette...),
		}
	}

	tops, ok := seasonTops[strings.ToLower(strings.TrimSpace(sc.Season))]
	if !ok {
		tops = seasonTops["spring"]
	}
	return outfitSpec{
		Top:         tops[idx(len(tops), 0)],
		Bottom:      bottoms[idx(len(bottoms), 1)],
		Shoes:       shoes[idx(len(shoes), 2)],
		Accessories: []string{accessories[idx(len(accessories), 4)]},
		Palette:     append([]string{}, palette...),
	}
}

// ResolveOutfit 返回角色在故事内的服装；已锁定时原样返回
// lock 为 true 时写入后锁定，后续调用不再改变
func (r *Resolver) ResolveOutfit(ctx context.Context, storyID string, profile *entity.CharacterProfile, bible *entity.IdentityBible, sc StoryContext, lock bool) (*entity.StoryCharacterOutfit, error) {
	existing, err := r.outfits.Get(ctx, storyID, profile.Kind, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("load outfit: %w", err)
	}
	if existing != nil && existing.OutfitLock {
		return existing, nil
	}

	spec := r.generateOutfit(ctx, storyID, profile, bible, sc)
	outfit := &entity.StoryCharacterOutfit{
		ID:          uuid.NewString(),
		StoryID:     storyID,
		ProfileKind: profile.Kind,
		ProfileID:   profile.ID,
		Top:         spec.Top,
		Bottom:      spec.Bottom,
		Shoes:       spec.Shoes,
		Accessories: pq.StringArray(spec.Accessories),
		Palette:     pq.StringArray(spec.Palette),
		OutfitLock:  lock,
	}
	if existing != nil {
		outfit.ID = existing.ID
	}
	if err := r.outfits.Upsert(ctx, outfit); err != nil {
		return nil, fmt.Errorf("save outfit: %w", err)
	}

	// 并发写入时以库中记录为准
	stored, err := r.outfits.Get(ctx, storyID, profile.Kind, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("reload outfit: %w", err)
	}
	if stored != nil {
		return stored, nil
	}
	return outfit, nil
}

func (r *Resolver) generateOutfit(ctx context.Context, storyID string, profile *entity.CharacterProfile, bible *entity.IdentityBible, sc StoryContext) outfitSpec {
	fallback := fallbackOutfit(profile, sc, SeedFromHash(SourceHash(storyID, map[string]string{"profile": string(profile.Kind) + "/" + profile.ID})))
	if r.client == nil || !r.client.Caller().Configured() {
		return fallback
	}

	appearance := "- unknown"
	if bible != nil {
		appearance = Describe(bible)
	}
	system, user, err := r.prompts.Render(ctx, prompt.PromptOutfitV1, map[string]any{
		"name":     profile.Name,
		"kind":     string(profile.Kind),
		"identity": appearance,
		"setting":  valueOr(sc.Setting, "a cozy neighborhood"),
		"season":   valueOr(sc.Season, "any"),
		"tone":     valueOr(sc.Tone, "calm"),
	})
	if err != nil {
		logger.Warn(ctx, "render outfit prompt failed", "error", err)
		return fallback
	}
	spec, err := structured.CallJSON(ctx, r.client, outfitSchema, structured.Options{
		Step:        entity.CostStepOutfit,
		System:      system,
		User:        user,
		Temperature: port.Float32(0.7),
		MaxTokens:   400,
		Retries:     1,
	})
	if err != nil {
		metrics.PipelineFallbackTotal.WithLabelValues("outfit").Inc()
		logger.Warn(ctx, "outfit generation failed, using fallback", "profile_id", profile.ID, "error", err)
		return fallback
	}
	if spec.Accessories == nil {
		spec.Accessories = []string{}
	}
	return *spec
}

// DescribeOutfit 服装的文本描述
func DescribeOutfit(o *entity.StoryCharacterOutfit) string {
	if o == nil {
		return ""
	}
	var parts []string
	for _, p := range []string{o.Top, o.Bottom, o.Shoes} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(o.Accessories) > 0 {
		parts = append(parts, "with "+strings.Join(o.Accessories, ", "))
	}
	out := strings.Join(parts, ", ")
	if len(o.Palette) > 0 {
		out += " (colors: " + strings.Join(o.Palette, ", ") + ")"
	}
	return out
}
