package port

import (
	"context"
	"time"
)

// JSONCache 读穿缓存，值以 JSON 序列化存储
type JSONCache interface {
	// GetOrLoadSafe 未命中时调用 loader 并回填，并发加载合并为一次
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}
