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

// CharacterProfileRepository 档案只读仓储实现
type CharacterProfileRepository struct {
	client *Client
}

// NewCharacterProfileRepository 创建档案仓储
func NewCharacterProfileRepository(client *Client) *CharacterProfileRepository {
	return &CharacterProfileRepository{client: client}
}

// Get 获取档案
func (r *CharacterProfileRepository) Get(ctx context.Context, kind entity.ProfileKind, id string) (*entity.CharacterProfile, error) {
	ctx, span := tracer.Start(ctx, "postgres.CharacterProfileRepository.Get")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var profile entity.CharacterProfile
	if err := db.First(&profile, "kind = ? AND id = ?", kind, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get character profile: %w", err)
	}
	return &profile, nil
}

// IdentityBibleRepository 角色形象仓储实现
type IdentityBibleRepository struct {
	client *Client
}

// NewIdentityBibleRepository 创建角色形象仓储
func NewIdentityBibleRepository(client *Client) *IdentityBibleRepository {
	return &IdentityBibleRepository{client: client}
}

// FindActive 按 (profile, source_hash) 查找生效版本
func (r *IdentityBibleRepository) FindActive(ctx context.Context, kind entity.ProfileKind, profileID, sourceHash string) (*entity.IdentityBible, error) {
	ctx, span := tracer.Start(ctx, "postgres.IdentityBibleRepository.FindActive")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var bible entity.IdentityBible
	err := db.Where("profile_kind = ? AND profile_id = ? AND source_hash = ? AND status = ?",
		kind, profileID, sourceHash, entity.IdentityStatusActive).
		Order("version DESC").
		First(&bible).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to find identity bible: %w", err)
	}
	return &bible, nil
}

// MaxVersion 当前最大版本号
func (r *IdentityBibleRepository) MaxVersion(ctx context.Context, kind entity.ProfileKind, profileID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.IdentityBibleRepository.MaxVersion")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var version int
	err := db.Model(&entity.IdentityBible{}).
		Where("profile_kind = ? AND profile_id = ?", kind, profileID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get identity max version: %w", err)
	}
	return version, nil
}

// Create 插入新版本，(profile_kind, profile_id, version) 冲突时返回 repository.ErrDuplicate
func (r *IdentityBibleRepository) Create(ctx context.Context, bible *entity.IdentityBible) error {
	ctx, span := tracer.Start(ctx, "postgres.IdentityBibleRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(bible).Error; err != nil {
		err = translate(err)
		span.RecordError(err)
		return fmt.Errorf("failed to create identity bible: %w", err)
	}
	return nil
}

// SupersedeOthers 将其他版本标记为 superseded
func (r *IdentityBibleRepository) SupersedeOthers(ctx context.Context, kind entity.ProfileKind, profileID, keepID string) error {
	ctx, span := tracer.Start(ctx, "postgres.IdentityBibleRepository.SupersedeOthers")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Model(&entity.IdentityBible{}).
		Where("profile_kind = ? AND profile_id = ? AND id <> ? AND status = ?",
			kind, profileID, keepID, entity.IdentityStatusActive).
		Update("status", entity.IdentityStatusSuperseded).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to supersede identity bibles: %w", err)
	}
	return nil
}

// SetPortrait 仅在肖像为空时写入
func (r *IdentityBibleRepository) SetPortrait(ctx context.Context, id, path, url string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.IdentityBibleRepository.SetPortrait")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Model(&entity.IdentityBible{}).
		Where("id = ? AND (portrait_path IS NULL OR portrait_path = '')", id).
		Updates(map[string]interface{}{"portrait_path": path, "portrait_url": url})
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to set identity portrait: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// GetByID 根据 ID 获取形象
func (r *IdentityBibleRepository) GetByID(ctx context.Context, id string) (*entity.IdentityBible, error) {
	ctx, span := tracer.Start(ctx, "postgres.IdentityBibleRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var bible entity.IdentityBible
	if err := db.First(&bible, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get identity bible: %w", err)
	}
	return &bible, nil
}

// OutfitRepository 故事内服装仓储实现
type OutfitRepository struct {
	client *Client
}

// NewOutfitRepository 创建服装仓储
func NewOutfitRepository(client *Client) *OutfitRepository {
	return &OutfitRepository{client: client}
}

// Get 获取服装
func (r *OutfitRepository) Get(ctx context.Context, storyID string, kind entity.ProfileKind, profileID string) (*entity.StoryCharacterOutfit, error) {
	ctx, span := tracer.Start(ctx, "postgres.OutfitRepository.Get")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var outfit entity.StoryCharacterOutfit
	err := db.First(&outfit, "story_id = ? AND profile_kind = ? AND profile_id = ?", storyID, kind, profileID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get outfit: %w", err)
	}
	return &outfit, nil
}

// Upsert 按 (story, profile) 插入或覆盖；已锁定的行保持不变
func (r *OutfitRepository) Upsert(ctx context.Context, outfit *entity.StoryCharacterOutfit) error {
	ctx, span := tracer.Start(ctx, "postgres.OutfitRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "story_id"}, {Name: "profile_kind"}, {Name: "profile_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"top", "bottom", "shoes", "accessories", "palette", "outfit_lock", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "story_character_outfits.outfit_lock = ?", Vars: []interface{}{false}},
		}},
	}).Create(outfit).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert outfit: %w", err)
	}
	return nil
}
