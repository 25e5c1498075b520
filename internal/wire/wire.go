//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/infrastructure/persistence/postgres"
	"bedtime-story-api/internal/interfaces/http/router"
	"bedtime-story-api/internal/workflow/prompt"
)

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewStoryRepository,
	postgres.NewStoryPageRepository,
	postgres.NewIllustrationRunRepository,
	postgres.NewGenerationCostRepository,
	postgres.NewCharacterProfileRepository,
	postgres.NewIdentityBibleRepository,
	postgres.NewOutfitRepository,
)

// RedisSet Redis 提供者集合，各提供者在 Redis 缺席时降级
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideLease,
	ProvideStyleCache,
	ProvideRateLimiter,
)

// PipelineSet 故事与插画流水线
var PipelineSet = wire.NewSet(
	prompt.NewRegistry,
	ProvideMeter,
	ProvideStructuredClient,
	ProvideStoryGenerator,
	ProvideImageGenerator,
	ProvideBlobStore,
	ProvideResolver,
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideStoryHandler,
	ProvideIllustrationHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)

// InitializeApp 初始化 API 网关
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		PipelineSet,
		ProvideDispatcher,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化插画任务消费进程
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		PipelineSet,
		ProvideConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializePostgresOnly 仅初始化 PostgreSQL（用于 bootstrap）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	wire.Build(ProvidePostgresClient)
	return nil, nil, nil
}
