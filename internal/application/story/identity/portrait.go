package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/logger"
)

// Describe 外观字段的文本描述，供肖像与插画提示词复用
func Describe(b *entity.IdentityBible) string {
	var parts []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("hair", b.Hair)
	add("eyes", b.Eyes)
	add("skin", b.SkinTone)
	add("face", b.FaceFeatures)
	add("body", b.BodyProportions)
	if len(b.MustKeep) > 0 {
		parts = append(parts, "always: "+strings.Join(b.MustKeep, "; "))
	}
	if len(b.MustNot) > 0 {
		parts = append(parts, "never: "+strings.Join(b.MustNot, "; "))
	}
	return strings.Join(parts, ". ")
}

func portraitPrompt(b *entity.IdentityBible) string {
	return fmt.Sprintf(
		"Character reference sheet for a children's picture book. One character named %s, front-facing, full body, "+
			"neutral standing pose, simple pale background, soft even lighting. %s. "+
			"No text, no logos, no other characters.",
		valueOr(b.Name, "the character"), Describe(b))
}

// EnsurePortrait 每个形象版本只生成一次参考肖像；进程内并发调用合并为一次
func (r *Resolver) EnsurePortrait(ctx context.Context, bible *entity.IdentityBible) (*entity.IdentityBible, error) {
	if bible.HasPortrait() {
		return bible, nil
	}
	if r.images == nil || r.blobs == nil {
		return bible, port.ErrNotConfigured
	}

	v, err, shared := r.portraits.Do(bible.ID, func() (any, error) {
		return r.createPortrait(ctx, bible)
	})
	if err != nil {
		return bible, err
	}
	if shared {
		logger.Debug(ctx, "portrait generation shared", "identity_id", bible.ID)
	}
	return v.(*entity.IdentityBible), nil
}

func (r *Resolver) createPortrait(ctx context.Context, bible *entity.IdentityBible) (*entity.IdentityBible, error) {
	fresh, err := r.bibles.GetByID(ctx, bible.ID)
	if err != nil {
		return nil, fmt.Errorf("reload identity: %w", err)
	}
	if fresh != nil && fresh.HasPortrait() {
		return fresh, nil
	}

	start := time.Now()
	res, err := r.images.Generate(ctx, port.ImageRequest{
		Prompt:  portraitPrompt(bible),
		Size:    r.opts.PortraitSize,
		Quality: r.opts.PortraitQuality,
	})
	entry := cost.Entry{Step: entity.CostStepPortraitImage, Duration: time.Since(start)}
	if res != nil {
		entry.Provider, entry.Model, entry.Usage, entry.ResponseID = res.Provider, res.Model, res.Usage, res.ResponseID
	}
	r.meter.Record(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("generate portrait: %w", err)
	}

	path := fmt.Sprintf("identities/%s/%s/portrait-v%d.%s",
		bible.ProfileKind, Slug(bible.ProfileID), bible.Version, ImageExt(res.MIMEType))
	url, err := r.blobs.Put(ctx, path, res.Data, valueOr(res.MIMEType, "image/png"))
	if err != nil {
		return nil, fmt.Errorf("upload portrait: %w", err)
	}

	stored, err := r.bibles.SetPortrait(ctx, bible.ID, path, url)
	if err != nil {
		return nil, fmt.Errorf("save portrait: %w", err)
	}
	if !stored {
		// 其他进程已写入
		winner, err := r.bibles.GetByID(ctx, bible.ID)
		if err == nil && winner != nil && winner.HasPortrait() {
			return winner, nil
		}
	}

	out := *bible
	out.PortraitPath = path
	out.PortraitURL = url
	return &out, nil
}

// ImageExt 按 MIME 类型返回文件扩展名
func ImageExt(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
