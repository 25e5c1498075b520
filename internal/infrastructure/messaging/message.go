// Package messaging 基于 Redis Stream 的任务队列
package messaging

import (
	"encoding/json"
	"time"

	"bedtime-story-api/internal/config"
)

// Message 消息结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	StoryID   string            `json:"story_id,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType, storyID string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		StoryID:   storyID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流定义
type Stream string

// StreamIllustrationRun 插画任务流
const StreamIllustrationRun Stream = "stream:illustration:run"

// MessageTypeIllustrationRun 插画任务消息类型
const MessageTypeIllustrationRun = "illustration_run"

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

// IllustratorGroup 插画 worker 的消费者组，prefix 来自配置
func IllustratorGroup(prefix string) ConsumerGroup {
	if prefix == "" {
		prefix = "cg"
	}
	return ConsumerGroup(prefix + "-illustrator")
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// BackoffFromConfig 从配置转换，缺省字段取默认值
func BackoffFromConfig(cfg config.BackoffConfig) BackoffConfig {
	b := DefaultBackoffConfig()
	if cfg.Initial > 0 {
		b.Initial = cfg.Initial
	}
	if cfg.Max > 0 {
		b.Max = cfg.Max
	}
	if cfg.Multiplier > 1 {
		b.Multiplier = cfg.Multiplier
	}
	return b
}

// CalculateBackoff 第 retryCount 次重投前的等待时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			return c.Max
		}
	}
	return backoff
}
