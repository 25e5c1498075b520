package repository

import (
	"context"

	"bedtime-story-api/internal/domain/entity"
)

// CharacterProfileRepository 档案只读仓储
type CharacterProfileRepository interface {
	// Get 获取档案，不存在时返回 nil, nil
	Get(ctx context.Context, kind entity.ProfileKind, id string) (*entity.CharacterProfile, error)
}

// IdentityBibleRepository 角色形象仓储接口
type IdentityBibleRepository interface {
	// FindActive 按 (profile, source_hash) 查找生效版本，不存在时返回 nil, nil
	FindActive(ctx context.Context, kind entity.ProfileKind, profileID, sourceHash string) (*entity.IdentityBible, error)

	// MaxVersion 当前最大版本号，无记录时为 0
	MaxVersion(ctx context.Context, kind entity.ProfileKind, profileID string) (int, error)

	// Create 插入新版本，版本号冲突时返回 ErrDuplicate
	Create(ctx context.Context, bible *entity.IdentityBible) error

	// SupersedeOthers 将同一档案的其他版本标记为 superseded
	SupersedeOthers(ctx context.Context, kind entity.ProfileKind, profileID, keepID string) error

	// SetPortrait 仅在肖像为空时写入，返回是否写入成功
	SetPortrait(ctx context.Context, id, path, url string) (bool, error)

	// GetByID 不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.IdentityBible, error)
}

// OutfitRepository 故事内服装仓储接口
type OutfitRepository interface {
	// Get 不存在时返回 nil, nil
	Get(ctx context.Context, storyID string, kind entity.ProfileKind, profileID string) (*entity.StoryCharacterOutfit, error)

	// Upsert 按 (story, profile) 插入或覆盖，已锁定的记录不会被覆盖
	Upsert(ctx context.Context, outfit *entity.StoryCharacterOutfit) error
}
