package imagegen

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/metrics"
)

// RateLimited 按每分钟请求数节流并记录调用指标
type RateLimited struct {
	next     port.ImageGenerator
	limiter  *rate.Limiter
	provider string
}

// NewRateLimited rpm<=0 时不限速
func NewRateLimited(next port.ImageGenerator, provider string, rpm, burst int) *RateLimited {
	limit := rate.Inf
	if rpm > 0 {
		limit = rate.Every(time.Minute / time.Duration(rpm))
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst), provider: provider}
}

// Generate 等待令牌后调用下游
func (r *RateLimited) Generate(ctx context.Context, req port.ImageRequest) (*port.ImageResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := r.next.Generate(ctx, req)
	model := ""
	if res != nil {
		model = res.Model
	}
	status := "ok"
	if err != nil {
		status = "error"
		if port.IsTransient(err) {
			status = "transient"
		}
	}
	metrics.ImageCallTotal.WithLabelValues(r.provider, model, status).Inc()
	metrics.ImageCallDuration.WithLabelValues(r.provider, model).Observe(time.Since(start).Seconds())
	return res, err
}
