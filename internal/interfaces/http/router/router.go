// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/interfaces/http/handler"
	"bedtime-story-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Health       *handler.HealthHandler
	Story        *handler.StoryHandler
	Illustration *handler.IllustrationHandler
}

// Router HTTP 路由器
type Router struct {
	engine  *gin.Engine
	cfg     *config.Config
	limiter middleware.RateLimiter
}

// New 创建新的路由器；limiter 为 nil 时使用进程内限流
func New(cfg *config.Config, h Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if limiter == nil {
		limiter = middleware.NewLocalRateLimiter()
	}

	r := &Router{
		engine:  gin.New(),
		cfg:     cfg,
		limiter: limiter,
	}
	r.setupMiddleware()
	r.setupRoutes(h)
	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

func (r *Router) setupRoutes(h Handlers) {
	if h.Health != nil {
		r.engine.GET("/health", h.Health.Health)
		r.engine.GET("/ready", h.Health.Ready)
		r.engine.GET("/live", h.Health.Live)
	}

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	// 本地存储驱动直接由网关提供图片
	if r.cfg.Storage.Driver == "local" && r.cfg.Storage.Local.Dir != "" {
		r.engine.Static("/blobs", r.cfg.Storage.Local.Dir)
	}

	RegisterV1Routes(r.engine.Group("/v1"), h, middleware.RateLimit(r.cfg.Security.RateLimit, r.limiter))
}
