package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryLease 进程内租约，单实例部署时使用
type MemoryLease struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryLease 创建进程内租约
func NewMemoryLease() *MemoryLease {
	return &MemoryLease{entries: make(map[string]memoryEntry), now: time.Now}
}

// Acquire 获取租约，过期的持有者视为已释放
func (l *MemoryLease) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[key]; ok && now.Before(e.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.entries[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

// Renew 续期
func (l *MemoryLease) Renew(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || e.token != token || !now.Before(e.expires) {
		return false, nil
	}
	e.expires = now.Add(ttl)
	l.entries[key] = e
	return true, nil
}

// Release 释放
func (l *MemoryLease) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok && e.token == token {
		delete(l.entries, key)
	}
	return nil
}
