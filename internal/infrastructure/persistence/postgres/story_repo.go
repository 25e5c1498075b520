// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bedtime-story-api/internal/domain/entity"
)

// StoryRepository 故事仓储实现
type StoryRepository struct {
	client *Client
}

// NewStoryRepository 创建故事仓储
func NewStoryRepository(client *Client) *StoryRepository {
	return &StoryRepository{client: client}
}

// Create 创建故事
func (r *StoryRepository) Create(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(story).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story: %w", translate(err))
	}
	return nil
}

// GetByID 根据 ID 获取故事
func (r *StoryRepository) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var story entity.Story
	if err := db.First(&story, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

// UpdateCover 更新封面
func (r *StoryRepository) UpdateCover(ctx context.Context, id, path, url string, source entity.CoverSource) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.UpdateCover")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Model(&entity.Story{}).Where("id = ?", id).Updates(map[string]interface{}{
		"cover_image_path": path,
		"cover_image_url":  url,
		"cover_source":     source,
	}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story cover: %w", err)
	}
	return nil
}

// UpdateStatus 更新状态
func (r *StoryRepository) UpdateStatus(ctx context.Context, id string, status entity.StoryStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Story{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story status: %w", err)
	}
	return nil
}

// StoryPageRepository 故事页仓储实现
type StoryPageRepository struct {
	client *Client
}

// NewStoryPageRepository 创建故事页仓储
func NewStoryPageRepository(client *Client) *StoryPageRepository {
	return &StoryPageRepository{client: client}
}

// ListByStory 按页序返回全部页面
func (r *StoryPageRepository) ListByStory(ctx context.Context, storyID string) ([]*entity.StoryPage, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryPageRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var pages []*entity.StoryPage
	if err := db.Where("story_id = ?", storyID).Order("page_index ASC").Find(&pages).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list story pages: %w", err)
	}
	return pages, nil
}

// GetByIndex 获取指定页
func (r *StoryPageRepository) GetByIndex(ctx context.Context, storyID string, pageIndex int) (*entity.StoryPage, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryPageRepository.GetByIndex")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var page entity.StoryPage
	if err := db.First(&page, "story_id = ? AND page_index = ?", storyID, pageIndex).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story page: %w", err)
	}
	return &page, nil
}

// CreateIgnoreDuplicates INSERT ... ON CONFLICT (story_id, page_index) DO NOTHING
func (r *StoryPageRepository) CreateIgnoreDuplicates(ctx context.Context, pages []*entity.StoryPage) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryPageRepository.CreateIgnoreDuplicates")
	defer span.End()

	if len(pages) == 0 {
		return nil
	}
	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "story_id"}, {Name: "page_index"}},
		DoNothing: true,
	}).Create(&pages).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story pages: %w", err)
	}
	return nil
}

// Update 保存页面
func (r *StoryPageRepository) Update(ctx context.Context, page *entity.StoryPage) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryPageRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(page).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story page: %w", err)
	}
	return nil
}

// UpdateStatus 仅更新插画状态
func (r *StoryPageRepository) UpdateStatus(ctx context.Context, id string, status entity.ImageStatus, errMsg string) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryPageRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Model(&entity.StoryPage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"image_status":  status,
		"error_message": errMsg,
	}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story page status: %w", err)
	}
	return nil
}

// SaveScene 缓存页面场景
func (r *StoryPageRepository) SaveScene(ctx context.Context, id string, scene *entity.SceneDescription) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryPageRepository.SaveScene")
	defer span.End()

	db := getDB(ctx, r.client.db)
	// 经由模型字段写入以复用 json serializer
	err := db.Model(&entity.StoryPage{ID: id}).Select("scene_json").Updates(&entity.StoryPage{Scene: scene}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save page scene: %w", err)
	}
	return nil
}

// IllustrationRunRepository 插画任务记录仓储实现
type IllustrationRunRepository struct {
	client *Client
}

// NewIllustrationRunRepository 创建任务记录仓储
func NewIllustrationRunRepository(client *Client) *IllustrationRunRepository {
	return &IllustrationRunRepository{client: client}
}

// Create 创建任务记录
func (r *IllustrationRunRepository) Create(ctx context.Context, run *entity.IllustrationRun) error {
	ctx, span := tracer.Start(ctx, "postgres.IllustrationRunRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create illustration run: %w", err)
	}
	return nil
}

// Update 更新任务记录
func (r *IllustrationRunRepository) Update(ctx context.Context, run *entity.IllustrationRun) error {
	ctx, span := tracer.Start(ctx, "postgres.IllustrationRunRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update illustration run: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务记录
func (r *IllustrationRunRepository) GetByID(ctx context.Context, id string) (*entity.IllustrationRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.IllustrationRunRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var run entity.IllustrationRun
	if err := db.First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get illustration run: %w", err)
	}
	return &run, nil
}

// LatestByStory 最近一次任务
func (r *IllustrationRunRepository) LatestByStory(ctx context.Context, storyID string) (*entity.IllustrationRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.IllustrationRunRepository.LatestByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var run entity.IllustrationRun
	if err := db.Where("story_id = ?", storyID).Order("created_at DESC").First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get latest illustration run: %w", err)
	}
	return &run, nil
}
