package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client redis.UniversalClient
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client redis.UniversalClient, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// Dispatch 投递插画任务，实现 port.Dispatcher
func (p *Producer) Dispatch(ctx context.Context, job port.IllustrationJob) error {
	msg, err := NewMessage(job.RunID, MessageTypeIllustrationRun, job.StoryID, job)
	if err != nil {
		return err
	}
	for _, key := range []logger.ContextKey{logger.RequestIDKey, logger.TraceIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			msg.SetMetadata(string(key), v)
		}
	}

	id, err := p.Publish(ctx, StreamIllustrationRun, msg)
	if err != nil {
		return err
	}
	logger.Info(ctx, "illustration job queued", "stream_id", id, "run_id", job.RunID)
	return nil
}
