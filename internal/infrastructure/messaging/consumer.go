package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer 消息消费者，失败消息留在 PEL 中按退避重投，超过上限进入死信流
type Consumer struct {
	client        redis.UniversalClient
	stream        Stream
	group         ConsumerGroup
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	handlers map[string]MessageHandler
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
	// ReclaimIdle 其他消费者的消息空闲超过该时长即接管，应大于单次任务耗时
	ReclaimIdle time.Duration
}

// NewConsumer 创建消息消费者
func NewConsumer(client redis.UniversalClient, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	if cfg.ReclaimIdle <= 0 {
		cfg.ReclaimIdle = maxDuration(15*time.Minute, cfg.Backoff.Max*2)
	}

	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		reclaimIdle:   cfg.ReclaimIdle,
		retryLimit:    cfg.RetryLimit,
		backoff:       cfg.Backoff,
		handlers:      make(map[string]MessageHandler),
		stopCh:        make(chan struct{}),
	}
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 创建消费者组并在后台消费
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.stream), string(c.group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费者
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

func (c *Consumer) run(ctx context.Context) {
	logger.Info(ctx, "consumer started",
		"stream", c.stream,
		"group", c.group,
		"consumer", c.consumerName,
	)

	lastClaim := time.Now().Add(-c.claimInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "consumer stopped due to context cancellation")
			return
		case <-c.stopCh:
			logger.Info(ctx, "consumer stopped")
			return
		default:
		}

		c.processDuePending(ctx)
		if time.Since(lastClaim) >= c.claimInterval {
			c.reclaimStale(ctx)
			lastClaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.group),
			Consumer: c.consumerName,
			Streams:  []string{string(c.stream), ">"},
			Count:    4,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Error(ctx, "failed to read from stream", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				c.processMessage(ctx, xmsg)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.processMessage",
		trace.WithAttributes(
			attribute.String("stream", string(c.stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, ok := decode(xmsg)
	if !ok {
		logger.Warn(ctx, "dropping malformed message", "message_id", xmsg.ID)
		c.ack(ctx, xmsg.ID)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "malformed").Inc()
		return
	}

	if msg.StoryID != "" {
		ctx = logger.WithStory(ctx, msg.StoryID)
	}
	if reqID := msg.GetMetadata(string(logger.RequestIDKey)); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	ctx = logger.WithContext(ctx, logger.JobIDKey, msg.ID)

	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("story_id", msg.StoryID),
	)

	c.mu.RLock()
	handler, exists := c.handlers[msg.Type]
	c.mu.RUnlock()

	if !exists {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "handler failed", err, "message_id", msg.ID)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "failed").Inc()
		c.handleFailure(ctx, xmsg, msg, err)
		return
	}

	c.ack(ctx, xmsg.ID)
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "ok").Inc()
}

func decode(xmsg redis.XMessage) (*Message, bool) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, false
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, false
	}
	return &msg, true
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.stream), string(c.group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

func (c *Consumer) handleFailure(ctx context.Context, xmsg redis.XMessage, msg *Message, err error) {
	retryCount := c.getRetryCount(ctx, xmsg.ID)
	if retryCount >= c.retryLimit {
		logger.Warn(ctx, "message moved to DLQ after max retries",
			"message_id", msg.ID,
			"retry_count", retryCount,
		)
		c.moveToDLQ(ctx, msg, err)
		c.ack(ctx, xmsg.ID)
		return
	}
	logger.Info(ctx, "message left pending for retry",
		"message_id", msg.ID,
		"retry_count", retryCount,
	)
}

// getRetryCount XPENDING 中的投递次数
func (c *Consumer) getRetryCount(ctx context.Context, messageID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

func (c *Consumer) moveToDLQ(ctx context.Context, msg *Message, err error) {
	dlqMsg := map[string]interface{}{
		"original_stream": string(c.stream),
		"data":            msg,
		"error":           err.Error(),
		"failed_at":       time.Now().Unix(),
	}
	data, _ := json.Marshal(dlqMsg)
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream.DLQStream(),
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		logger.Error(ctx, "failed to write DLQ", err, "message_id", msg.ID)
		return
	}
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "dead_letter").Inc()
}

// claim 接管消息；exhausted 为 true 时直接进死信流，否则重新处理
func (c *Consumer) claim(ctx context.Context, id string, minIdle time.Duration, exhausted bool) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Consumer: c.consumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", id)
		return
	}

	for _, xmsg := range claimed {
		if !exhausted {
			c.processMessage(ctx, xmsg)
			continue
		}
		if msg, ok := decode(xmsg); ok {
			c.moveToDLQ(ctx, msg, fmt.Errorf("message exceeded max retries"))
		}
		c.ack(ctx, xmsg.ID)
	}
}

// processDuePending 重投本消费者名下已到退避时间的消息
func (c *Consumer) processDuePending(ctx context.Context) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Start:    "-",
		End:      "+",
		Count:    20,
		Consumer: c.consumerName,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error(ctx, "failed to query pending messages", err)
		}
		return
	}

	for _, p := range pending {
		retryCount := int(p.RetryCount)
		if retryCount >= c.retryLimit {
			c.claim(ctx, p.ID, 0, true)
			continue
		}
		backoff := c.backoff.CalculateBackoff(retryCount)
		if p.Idle < backoff {
			continue
		}
		c.claim(ctx, p.ID, backoff, false)
	}
}

// reclaimStale 接管崩溃消费者遗留的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  "-",
		End:    "+",
		Count:  20,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error(ctx, "failed to query pending messages for reclaim", err)
		}
		return
	}

	for _, p := range pending {
		if p.Consumer == c.consumerName || p.Idle < c.reclaimIdle {
			continue
		}
		c.claim(ctx, p.ID, c.reclaimIdle, int(p.RetryCount) >= c.retryLimit)
	}
}

// MonitorLag 周期上报待处理数量，死信超过阈值时告警
func (c *Consumer) MonitorLag(ctx context.Context, interval time.Duration, dlqAlertThreshold int64) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			groups, err := c.client.XInfoGroups(ctx, string(c.stream)).Result()
			if err == nil {
				for _, g := range groups {
					if g.Name == string(c.group) {
						metrics.RedisStreamLag.WithLabelValues(string(c.stream), g.Name).Set(float64(g.Pending))
					}
				}
			}

			dlq := c.stream.DLQStream()
			if n, err := c.client.XLen(ctx, dlq).Result(); err == nil && n > dlqAlertThreshold {
				logger.Warn(ctx, "DLQ has pending messages", "stream", dlq, "count", n)
			}
		}
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
