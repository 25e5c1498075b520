// Package main 插画任务执行器入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bedtime-story-api/internal/config"
	einoobs "bedtime-story-api/internal/observability/eino"
	"bedtime-story-api/internal/wire"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/tracer"
)

const (
	lagInterval       = 30 * time.Second
	dlqAlertThreshold = 10
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einoobs.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	if err := worker.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go worker.Consumer.MonitorLag(ctx, lagInterval, dlqAlertThreshold)

	log := logger.FromContext(ctx)
	log.Info("job-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	worker.Consumer.Stop()
	cancel()
}
