package wire

import (
	"context"
	"errors"
	"fmt"
	"os"

	"bedtime-story-api/internal/application/story"
	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/draft"
	"bedtime-story-api/internal/application/story/identity"
	"bedtime-story-api/internal/application/story/illustration"
	"bedtime-story-api/internal/application/story/llmcall"
	"bedtime-story-api/internal/application/story/plan"
	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/infrastructure/imagegen"
	"bedtime-story-api/internal/infrastructure/lease"
	"bedtime-story-api/internal/infrastructure/llm"
	"bedtime-story-api/internal/infrastructure/messaging"
	"bedtime-story-api/internal/infrastructure/persistence/postgres"
	"bedtime-story-api/internal/infrastructure/persistence/redis"
	"bedtime-story-api/internal/infrastructure/storage"
	"bedtime-story-api/internal/interfaces/http/handler"
	"bedtime-story-api/internal/interfaces/http/middleware"
	"bedtime-story-api/internal/interfaces/http/router"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
	"bedtime-story-api/pkg/logger"
)

const (
	leaseRedis     = "redis"
	dispatchStream = "stream"
)

// App API 网关依赖容器
type App struct {
	Router       *router.Router
	Orchestrator *illustration.Orchestrator
	Dispatcher   port.Dispatcher
}

// Worker 插画任务消费进程依赖容器
type Worker struct {
	Orchestrator *illustration.Orchestrator
	Consumer     *messaging.Consumer
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideRedisClient 提供 Redis 客户端；租约或派发依赖 Redis 时连接失败即报错，否则降级为 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	required := needsRedis(cfg)
	if cfg.Cache.Redis.Host == "" {
		if required {
			return nil, nil, errors.New("redis host is required for redis lease or stream dispatch")
		}
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		if required {
			return nil, nil, err
		}
		logger.Warn(ctx, "redis not available, using in-process lease and rate limit", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

func needsRedis(cfg *config.Config) bool {
	ic := cfg.Pipeline.Illustration
	return ic.Lease == leaseRedis || ic.Dispatch == dispatchStream
}

// ProvideLease 按配置选择租约实现
func ProvideLease(cfg *config.Config, rc *redis.Client) port.Lease {
	if rc != nil && cfg.Pipeline.Illustration.Lease != "memory" {
		return lease.NewRedisLease(rc.Redis())
	}
	return lease.NewMemoryLease()
}

// ProvideStyleCache 风格缓存，无 Redis 时为 nil
func ProvideStyleCache(rc *redis.Client) port.JSONCache {
	if rc == nil {
		return nil
	}
	return redis.NewCache(rc)
}

// ProvideRateLimiter 接口限流器，无 Redis 时由路由回退到进程内实现
func ProvideRateLimiter(rc *redis.Client) middleware.RateLimiter {
	if rc == nil {
		return nil
	}
	return redis.NewRateLimiter(rc)
}

// ProvideMeter 计量器，成本直接写入台账
func ProvideMeter(cfg *config.Config, costs *postgres.GenerationCostRepository) *cost.Meter {
	return cost.NewMeter(cost.NewPriceTable(cfg.Pricing), costs)
}

// ProvideStructuredClient 结构化输出客户端
func ProvideStructuredClient(cfg *config.Config, meter *cost.Meter, prompts *prompt.Registry) *structured.Client {
	gen := llm.NewTextGenerator(llm.NewEinoFactory(&cfg.LLM), &cfg.LLM)
	return structured.NewClient(llmcall.New(gen, meter), prompts)
}

// ProvideStoryGenerator 故事生成流水线
func ProvideStoryGenerator(
	cfg *config.Config,
	client *structured.Client,
	prompts *prompt.Registry,
	stories *postgres.StoryRepository,
	costs *postgres.GenerationCostRepository,
	meter *cost.Meter,
) *story.StoryGenerator {
	pc := cfg.Pipeline
	planner := plan.NewPlanner(client, prompts, pc.Planner)
	engine := draft.NewEngine(client, prompts, pc.Draft, pc.Repetition, pc.Structured.Retries)
	return story.NewStoryGenerator(planner, engine, stories, costs, meter)
}

// ProvideImageGenerator 图像生成器，未配置时为 nil
func ProvideImageGenerator(ctx context.Context, cfg *config.Config) (port.ImageGenerator, error) {
	return imagegen.New(ctx, &cfg.Image)
}

// ProvideBlobStore 对象存储
func ProvideBlobStore(cfg *config.Config) (port.BlobStore, error) {
	return storage.New(&cfg.Storage)
}

// ProvideResolver 角色形象解析器
func ProvideResolver(
	cfg *config.Config,
	profiles *postgres.CharacterProfileRepository,
	bibles *postgres.IdentityBibleRepository,
	outfits *postgres.OutfitRepository,
	tx *postgres.TxManager,
	client *structured.Client,
	prompts *prompt.Registry,
	images port.ImageGenerator,
	blobs port.BlobStore,
	meter *cost.Meter,
) *identity.Resolver {
	pc := imageProvider(cfg)
	return identity.NewResolver(profiles, bibles, outfits, client, prompts, images, blobs, meter, identity.Options{
		MaxAttempts:     cfg.Pipeline.Identity.MaxAttempts,
		PortraitSize:    pc.Size,
		PortraitQuality: pc.Quality,
		Tx:              tx,
	})
}

// ProvideOrchestrator 插画编排器
func ProvideOrchestrator(
	cfg *config.Config,
	stories *postgres.StoryRepository,
	pages *postgres.StoryPageRepository,
	runs *postgres.IllustrationRunRepository,
	resolver *identity.Resolver,
	client *structured.Client,
	prompts *prompt.Registry,
	images port.ImageGenerator,
	blobs port.BlobStore,
	l port.Lease,
	styles port.JSONCache,
	meter *cost.Meter,
) *illustration.Orchestrator {
	ic := cfg.Pipeline.Illustration
	pc := imageProvider(cfg)
	scenes := illustration.NewSceneExtractor(client, prompts, pages)
	return illustration.NewOrchestrator(stories, pages, runs, resolver, scenes, images, blobs, l, styles, meter, illustration.Config{
		BatchSize:     ic.BatchSize,
		MaxAttempts:   ic.MaxAttempts,
		BackoffBase:   ic.BackoffBase,
		LeaseTTL:      ic.LeaseTTL,
		StyleCacheTTL: ic.StyleCacheTTL,
		GenerateCover: ic.GenerateCover,
		ImageSize:     pc.Size,
		ImageQuality:  pc.Quality,
	})
}

// ProvideDispatcher 按配置选择 Redis Stream 或进程内派发，并注入编排器
func ProvideDispatcher(cfg *config.Config, orch *illustration.Orchestrator, rc *redis.Client) (port.Dispatcher, error) {
	var d port.Dispatcher
	if cfg.Pipeline.Illustration.Dispatch == dispatchStream {
		if rc == nil {
			return nil, fmt.Errorf("stream dispatch requires redis")
		}
		d = messaging.NewProducer(rc.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
	} else {
		d = illustration.NewInProcessDispatcher(orch.Run)
	}
	orch.SetDispatcher(d)
	return d, nil
}

// ProvideConsumer 插画任务消费者
func ProvideConsumer(cfg *config.Config, orch *illustration.Orchestrator, rc *redis.Client) (*messaging.Consumer, error) {
	if rc == nil {
		return nil, fmt.Errorf("job worker requires redis")
	}
	sc := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(rc.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamIllustrationRun,
		Group:         messaging.IllustratorGroup(sc.ConsumerGroupPrefix),
		ConsumerName:  consumerName(cfg),
		BlockTimeout:  sc.BlockTimeout,
		ClaimInterval: sc.ClaimInterval,
		RetryLimit:    sc.RetryLimit,
		Backoff:       messaging.BackoffFromConfig(sc.RetryBackoff),
	})
	consumer.RegisterHandler(messaging.MessageTypeIllustrationRun, func(ctx context.Context, msg *messaging.Message) error {
		var job port.IllustrationJob
		if err := msg.UnmarshalPayload(&job); err != nil {
			return fmt.Errorf("decode illustration job: %w", err)
		}
		return orch.Run(ctx, job)
	})
	return consumer, nil
}

// ProvideHealthHandler 健康检查，Redis 未启用时不参与就绪判断
func ProvideHealthHandler(pg *postgres.Client, rc *redis.Client) *handler.HealthHandler {
	if rc == nil {
		return handler.NewHealthHandler(pg, nil)
	}
	return handler.NewHealthHandler(pg, rc)
}

// ProvideStoryHandler 故事处理器
func ProvideStoryHandler(
	gen *story.StoryGenerator,
	stories *postgres.StoryRepository,
	pages *postgres.StoryPageRepository,
	runs *postgres.IllustrationRunRepository,
	costs *postgres.GenerationCostRepository,
) *handler.StoryHandler {
	return handler.NewStoryHandler(gen, stories, pages, runs, costs)
}

// ProvideIllustrationHandler 插画处理器
func ProvideIllustrationHandler(orch *illustration.Orchestrator) *handler.IllustrationHandler {
	return handler.NewIllustrationHandler(orch)
}

// ProvideRouter 路由器
func ProvideRouter(cfg *config.Config, h router.Handlers, limiter middleware.RateLimiter) *router.Router {
	return router.New(cfg, h, limiter)
}

func imageProvider(cfg *config.Config) config.ImageProviderConfig {
	return cfg.Image.Providers[cfg.Image.Provider]
}

func consumerName(cfg *config.Config) string {
	name := cfg.App.Name
	if name == "" {
		name = "bedtime-story"
	}
	return fmt.Sprintf("%s-%s-%d", name, hostname(), os.Getpid())
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}
