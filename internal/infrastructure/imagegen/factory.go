package imagegen

import (
	"context"
	"errors"
	"fmt"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/logger"
)

// New 按配置构造图像生成器；未配置提供商时返回 nil，插画流程据此跳过出图
func New(ctx context.Context, cfg *config.ImageConfig) (port.ImageGenerator, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, nil
	}
	providerCfg, ok := cfg.Providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("image provider %s not found in config", cfg.Provider)
	}

	var (
		base port.ImageGenerator
		err  error
	)
	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIClient(providerCfg)
	case "gemini":
		base, err = NewGeminiClient(ctx, providerCfg)
	default:
		return nil, fmt.Errorf("unsupported image provider: %s", cfg.Provider)
	}
	if err != nil {
		if errors.Is(err, port.ErrNotConfigured) {
			logger.Warn(ctx, "image provider has no api key, illustrations disabled", "provider", cfg.Provider)
			return nil, nil
		}
		return nil, err
	}

	limited := NewRateLimited(base, cfg.Provider, cfg.RequestsPerMinute, cfg.Burst)
	return NewReferenceCache(limited, cfg.ReferenceCacheTTL), nil
}
