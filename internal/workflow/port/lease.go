package port

import (
	"context"
	"time"
)

// Lease 跨进程互斥租约，保证同一故事同时只有一个插画任务
type Lease interface {
	// Acquire 获取租约，已被持有时 ok 为 false
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Renew 延长租约，token 不匹配时返回 false
	Renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Release 释放租约，仅持有者可释放
	Release(ctx context.Context, key, token string) error
}

// IllustrationJob 派发给执行端的插画任务
type IllustrationJob struct {
	StoryID    string `json:"story_id"`
	RunID      string `json:"run_id"`
	LeaseToken string `json:"lease_token"`
}

// Dispatcher 派发插画任务，调用方不等待执行结果
type Dispatcher interface {
	Dispatch(ctx context.Context, job IllustrationJob) error
}
