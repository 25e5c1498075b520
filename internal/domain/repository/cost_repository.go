package repository

import (
	"context"

	"bedtime-story-api/internal/domain/entity"
)

// GenerationCostRepository 成本台账仓储，只追加
type GenerationCostRepository interface {
	// Create 追加一条记录
	Create(ctx context.Context, row *entity.GenerationCost) error

	// CreateBatch 批量追加
	CreateBatch(ctx context.Context, rows []*entity.GenerationCost) error

	// ListByStory 分页获取故事成本明细，按时间升序
	ListByStory(ctx context.Context, storyID string, pagination Pagination) (*PagedResult[*entity.GenerationCost], error)

	// SumByStory 故事累计成本
	SumByStory(ctx context.Context, storyID string) (float64, error)
}
