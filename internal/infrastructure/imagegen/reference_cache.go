package imagegen

import (
	"context"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/logger"
)

// ReferenceCache 补齐只有 URL 的参考图字节，按 ID（缺省用 URL）进程内缓存
type ReferenceCache struct {
	next       port.ImageGenerator
	cache      *gocache.Cache
	ttl        time.Duration
	httpClient *http.Client
}

// NewReferenceCache 包装生成器
func NewReferenceCache(next port.ImageGenerator, ttl time.Duration) *ReferenceCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ReferenceCache{
		next:       next,
		cache:      gocache.New(ttl, 2*ttl),
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate 补齐参考图后调用下游
func (c *ReferenceCache) Generate(ctx context.Context, req port.ImageRequest) (*port.ImageResult, error) {
	if len(req.References) > 0 {
		refs := make([]port.ReferenceImage, 0, len(req.References))
		for _, ref := range req.References {
			refs = append(refs, c.resolve(ctx, ref))
		}
		req.References = refs
	}
	return c.next.Generate(ctx, req)
}

func (c *ReferenceCache) resolve(ctx context.Context, ref port.ReferenceImage) port.ReferenceImage {
	key := ref.ID
	if key == "" {
		key = ref.URL
	}
	if len(ref.Data) > 0 {
		if key != "" {
			c.cache.Set(key, ref.Data, c.ttl)
		}
		return ref
	}
	if key == "" {
		return ref
	}
	if v, ok := c.cache.Get(key); ok {
		if data, ok := v.([]byte); ok {
			ref.Data = data
			return ref
		}
	}
	if ref.URL == "" {
		return ref
	}
	data, err := fetchURL(ctx, c.httpClient, ref.URL)
	if err != nil {
		logger.Warn(ctx, "reference image fetch failed", "ref", key, "error", err)
		return ref
	}
	c.cache.Set(key, data, c.ttl)
	ref.Data = data
	return ref
}
