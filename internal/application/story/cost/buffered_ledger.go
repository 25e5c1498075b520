package cost

import (
	"context"
	"sync"

	"bedtime-story-api/internal/domain/entity"
)

// BatchLedger 支持批量追加的台账
type BatchLedger interface {
	CreateBatch(ctx context.Context, rows []*entity.GenerationCost) error
}

// BufferedLedger 在故事落库前暂存记录，故事 ID 确定后一次性写入
type BufferedLedger struct {
	mu   sync.Mutex
	rows []*entity.GenerationCost
}

// NewBufferedLedger 创建暂存台账
func NewBufferedLedger() *BufferedLedger {
	return &BufferedLedger{}
}

// Create 暂存，不会失败
func (b *BufferedLedger) Create(_ context.Context, row *entity.GenerationCost) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, row)
	return nil
}

// Len 暂存条数
func (b *BufferedLedger) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Flush 为未归属的记录填入故事 ID 并写入目标台账；成功后清空缓冲
func (b *BufferedLedger) Flush(ctx context.Context, storyID string, dst BatchLedger) error {
	b.mu.Lock()
	rows := b.rows
	b.rows = nil
	b.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.StoryID == nil {
			id := storyID
			r.StoryID = &id
		}
	}
	if err := dst.CreateBatch(ctx, rows); err != nil {
		b.mu.Lock()
		b.rows = append(rows, b.rows...)
		b.mu.Unlock()
		return err
	}
	return nil
}
