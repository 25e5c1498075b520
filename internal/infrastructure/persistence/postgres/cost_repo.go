// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
)

const costBatchSize = 100

// GenerationCostRepository 成本台账仓储实现，只追加
type GenerationCostRepository struct {
	client *Client
}

// NewGenerationCostRepository 创建成本台账仓储
func NewGenerationCostRepository(client *Client) *GenerationCostRepository {
	return &GenerationCostRepository{client: client}
}

// Create 追加一条记录
func (r *GenerationCostRepository) Create(ctx context.Context, row *entity.GenerationCost) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationCostRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(row).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create generation cost: %w", err)
	}
	return nil
}

// CreateBatch 批量追加
func (r *GenerationCostRepository) CreateBatch(ctx context.Context, rows []*entity.GenerationCost) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationCostRepository.CreateBatch")
	defer span.End()

	if len(rows) == 0 {
		return nil
	}
	db := getDB(ctx, r.client.db)
	if err := db.CreateInBatches(rows, costBatchSize).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create generation costs: %w", err)
	}
	return nil
}

// ListByStory 分页获取故事成本明细
func (r *GenerationCostRepository) ListByStory(ctx context.Context, storyID string, pagination repository.Pagination) (*repository.PagedResult[*entity.GenerationCost], error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationCostRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.GenerationCost{}).Where("story_id = ?", storyID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count generation costs: %w", err)
	}

	var rows []*entity.GenerationCost
	if err := query.Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list generation costs: %w", err)
	}

	return repository.NewPagedResult(rows, total, pagination), nil
}

// SumByStory 故事累计成本
func (r *GenerationCostRepository) SumByStory(ctx context.Context, storyID string) (float64, error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationCostRepository.SumByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var total float64
	if err := db.Model(&entity.GenerationCost{}).
		Where("story_id = ?", storyID).
		Select("COALESCE(SUM(cost_usd), 0)").
		Scan(&total).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to sum generation costs: %w", err)
	}
	return total, nil
}
