package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/singleflight"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

// ErrIdentityConflict 多次重试后仍无法写入或读回形象版本
var ErrIdentityConflict = errors.New("identity: version conflict persisted after retries")

// Options 解析器参数
type Options struct {
	MaxAttempts     int
	PortraitSize    string
	PortraitQuality string
	// Tx 非空时新版本写入与旧版本失效在同一事务内完成
	Tx repository.Transactor
}

// Resolver 角色形象与服装解析器
type Resolver struct {
	profiles repository.CharacterProfileRepository
	bibles   repository.IdentityBibleRepository
	outfits  repository.OutfitRepository

	client  *structured.Client
	prompts *prompt.Registry
	images  port.ImageGenerator
	blobs   port.BlobStore
	meter   *cost.Meter

	opts      Options
	portraits *singleflight.Group
}

// NewResolver 创建解析器；client、images、blobs 均可为 nil，此时走确定性路径
func NewResolver(
	profiles repository.CharacterProfileRepository,
	bibles repository.IdentityBibleRepository,
	outfits repository.OutfitRepository,
	client *structured.Client,
	prompts *prompt.Registry,
	images port.ImageGenerator,
	blobs port.BlobStore,
	meter *cost.Meter,
	opts Options,
) *Resolver {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if meter == nil {
		meter = cost.NewMeter(nil, nil)
	}
	return &Resolver{
		profiles:  profiles,
		bibles:    bibles,
		outfits:   outfits,
		client:    client,
		prompts:   prompts,
		images:    images,
		blobs:     blobs,
		meter:     meter,
		opts:      opts,
		portraits: &singleflight.Group{},
	}
}

// WithMeter 返回使用指定计量器的副本，共享肖像去重组
func (r *Resolver) WithMeter(m *cost.Meter) *Resolver {
	cp := *r
	cp.meter = m
	if r.client != nil && r.client.Caller() != nil {
		cp.client = r.client.WithCaller(r.client.Caller().WithMeter(m))
	}
	return &cp
}

// ProfileFor 返回故事角色对应的档案，未绑定家庭档案时生成虚构档案
func (r *Resolver) ProfileFor(ctx context.Context, story *entity.Story, c entity.BibleCharacter) (*entity.CharacterProfile, error) {
	if m, ok := story.CastFor(c.Name); ok && m.ProfileID != "" && r.profiles != nil {
		profile, err := r.profiles.Get(ctx, m.ProfileKind, m.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("load profile %s/%s: %w", m.ProfileKind, m.ProfileID, err)
		}
		if profile != nil {
			return profile, nil
		}
		logger.Warn(ctx, "cast profile missing, using story character", "profile_kind", string(m.ProfileKind), "profile_id", m.ProfileID)
	}
	return StoryCharacterProfile(story.ID, c), nil
}

// StoryCharacterProfile 虚构角色档案，ID 为 <story_id>:<slug>
func StoryCharacterProfile(storyID string, c entity.BibleCharacter) *entity.CharacterProfile {
	attrs := map[string]string{}
	if len(c.Traits) > 0 {
		attrs[AttrTraits] = strings.Join(c.Traits, ", ")
	}
	return &entity.CharacterProfile{
		Kind:       entity.ProfileKindStoryCharacter,
		ID:         storyID + ":" + Slug(c.Name),
		Name:       c.Name,
		Role:       c.Role,
		Attributes: attrs,
	}
}

// ResolveIdentity 返回档案当前外观；档案未变化时复用已有版本
func (r *Resolver) ResolveIdentity(ctx context.Context, profile *entity.CharacterProfile) (*entity.IdentityBible, error) {
	hash := SourceHash(profile.PhotoReference, profile.Attributes)

	existing, err := r.bibles.FindActive(ctx, profile.Kind, profile.ID, hash)
	if err != nil {
		return nil, fmt.Errorf("find identity: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	traits, fromPhoto := r.extract(ctx, profile, hash)
	traits = MergeExplicit(traits, profile.Attributes)

	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		// 提取期间可能已有其他任务为同一来源写入版本
		existing, err := r.bibles.FindActive(ctx, profile.Kind, profile.ID, hash)
		if err != nil {
			return nil, fmt.Errorf("reread identity: %w", err)
		}
		if existing != nil {
			return existing, nil
		}

		maxVersion, err := r.bibles.MaxVersion(ctx, profile.Kind, profile.ID)
		if err != nil {
			return nil, fmt.Errorf("identity max version: %w", err)
		}

		bible := newBible(profile, hash, maxVersion+1, traits, fromPhoto)
		err = r.createVersion(ctx, bible)
		if err == nil {
			logger.Info(ctx, "identity version created",
				"profile_kind", string(profile.Kind),
				"profile_id", profile.ID,
				"version", bible.Version,
				"from_photo", fromPhoto,
			)
			return bible, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("create identity: %w", err)
		}

		metrics.IdentityConflictsTotal.Inc()
		logger.Debug(ctx, "identity version conflict, rereading", "profile_id", profile.ID, "attempt", attempt)
	}

	existing, err = r.bibles.FindActive(ctx, profile.Kind, profile.ID, hash)
	if err != nil {
		return nil, fmt.Errorf("reread identity: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	return nil, ErrIdentityConflict
}

func newBible(profile *entity.CharacterProfile, hash string, version int, t Traits, fromPhoto bool) *entity.IdentityBible {
	return &entity.IdentityBible{
		ID:              uuid.NewString(),
		ProfileKind:     profile.Kind,
		ProfileID:       profile.ID,
		Version:         version,
		SourceHash:      hash,
		Status:          entity.IdentityStatusActive,
		Name:            profile.Name,
		Hair:            t.Hair,
		Eyes:            t.Eyes,
		SkinTone:        t.SkinTone,
		FaceFeatures:    t.FaceFeatures,
		BodyProportions: t.BodyProportions,
		MustKeep:        pq.StringArray(append([]string{}, t.MustKeep...)),
		MustNot:         pq.StringArray(append([]string{}, t.MustNot...)),
		Seed:            SeedFromHash(hash),
		FromPhoto:       fromPhoto,
	}
}

// extract 有照片且模型可用时走视觉提取，否则按属性确定性生成
func (r *Resolver) extract(ctx context.Context, profile *entity.CharacterProfile, hash string) (Traits, bool) {
	fallback := DeterministicTraits(profile, SeedFromHash(hash))
	if profile.PhotoReference == "" || r.client == nil || !r.client.Caller().Configured() {
		return fallback, false
	}

	system, user, err := r.prompts.Render(ctx, prompt.PromptIdentityExtractV1, map[string]any{
		"name":                profile.Name,
		"kind":                string(profile.Kind),
		"explicit_attributes": attributeBlock(profile.Attributes),
	})
	if err != nil {
		logger.Warn(ctx, "render identity prompt failed", "error", err)
		return fallback, false
	}
	traits, err := structured.CallJSON(ctx, r.client, traitsSchema, structured.Options{
		Step:        entity.CostStepIdentityExtract,
		System:      system,
		User:        user,
		ImageURLs:   []string{r.photoURL(profile.PhotoReference)},
		Vision:      true,
		Temperature: port.Float32(0),
		MaxTokens:   600,
		Retries:     1,
	})
	if err != nil {
		metrics.PipelineFallbackTotal.WithLabelValues("identity").Inc()
		logger.Warn(ctx, "identity extraction failed, using attributes", "profile_id", profile.ID, "error", err)
		return fallback, false
	}
	return *traits, true
}

func (r *Resolver) photoURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref
	}
	if r.blobs != nil {
		return r.blobs.URL(ref)
	}
	return ref
}

func attributeBlock(attrs map[string]string) string {
	if len(attrs) == 0 {
		return "- none"
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		if strings.TrimSpace(attrs[k]) == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", k, attrs[k])
	}
	if b.Len() == 0 {
		return "- none"
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Resolver) createVersion(ctx context.Context, bible *entity.IdentityBible) error {
	if r.opts.Tx == nil {
		if err := r.bibles.Create(ctx, bible); err != nil {
			return err
		}
		if err := r.bibles.SupersedeOthers(ctx, bible.ProfileKind, bible.ProfileID, bible.ID); err != nil {
			logger.Warn(ctx, "failed to supersede older identities", "profile_id", bible.ProfileID, "error", err)
		}
		return nil
	}
	return r.opts.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.bibles.Create(txCtx, bible); err != nil {
			return err
		}
		return r.bibles.SupersedeOthers(txCtx, bible.ProfileKind, bible.ProfileID, bible.ID)
	})
}
