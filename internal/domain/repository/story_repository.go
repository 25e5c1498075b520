package repository

import (
	"context"

	"bedtime-story-api/internal/domain/entity"
)

// StoryRepository 故事仓储接口
type StoryRepository interface {
	// Create 创建故事，ID 为空时由数据库生成
	Create(ctx context.Context, story *entity.Story) error

	// GetByID 根据 ID 获取故事，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Story, error)

	// UpdateCover 更新封面
	UpdateCover(ctx context.Context, id, path, url string, source entity.CoverSource) error

	// UpdateStatus 更新状态
	UpdateStatus(ctx context.Context, id string, status entity.StoryStatus) error
}

// StoryPageRepository 故事页仓储接口
type StoryPageRepository interface {
	// ListByStory 按页序返回故事全部页面
	ListByStory(ctx context.Context, storyID string) ([]*entity.StoryPage, error)

	// GetByIndex 获取指定页，不存在时返回 nil, nil
	GetByIndex(ctx context.Context, storyID string, pageIndex int) (*entity.StoryPage, error)

	// CreateIgnoreDuplicates 批量插入，(story_id, page_index) 冲突的行被忽略
	CreateIgnoreDuplicates(ctx context.Context, pages []*entity.StoryPage) error

	// Update 保存页面全部可变字段
	Update(ctx context.Context, page *entity.StoryPage) error

	// UpdateStatus 仅更新插画状态与错误信息
	UpdateStatus(ctx context.Context, id string, status entity.ImageStatus, errMsg string) error

	// SaveScene 缓存页面场景
	SaveScene(ctx context.Context, id string, scene *entity.SceneDescription) error
}

// IllustrationRunRepository 插画任务记录仓储接口
type IllustrationRunRepository interface {
	Create(ctx context.Context, run *entity.IllustrationRun) error
	Update(ctx context.Context, run *entity.IllustrationRun) error

	// GetByID 不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.IllustrationRun, error)

	// LatestByStory 最近一次任务，不存在时返回 nil, nil
	LatestByStory(ctx context.Context, storyID string) (*entity.IllustrationRun, error)
}
