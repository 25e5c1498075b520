// Package lease 提供插画任务的跨进程互斥租约
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lease")

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLease 基于 SET NX PX 的租约，释放与续期通过 Lua 比较 token
type RedisLease struct {
	rdb redis.UniversalClient
}

// NewRedisLease 创建 Redis 租约
func NewRedisLease(rdb redis.UniversalClient) *RedisLease {
	return &RedisLease{rdb: rdb}
}

// Acquire 获取租约
func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "lease.Acquire",
		trace.WithAttributes(attribute.String("lease.key", key)))
	defer span.End()

	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	span.SetAttributes(attribute.Bool("lease.acquired", ok))
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Renew 续期
func (l *RedisLease) Renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "lease.Renew",
		trace.WithAttributes(attribute.String("lease.key", key)))
	defer span.End()

	n, err := renewScript.Run(ctx, l.rdb, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to renew lease: %w", err)
	}
	return n == 1, nil
}

// Release 释放
func (l *RedisLease) Release(ctx context.Context, key, token string) error {
	ctx, span := tracer.Start(ctx, "lease.Release",
		trace.WithAttributes(attribute.String("lease.key", key)))
	defer span.End()

	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
