package entity

import (
	"time"

	"github.com/lib/pq"
)

// StoryCharacterOutfit 角色在单个故事内的服装，每个 (story, profile) 一条
type StoryCharacterOutfit struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID     string         `json:"story_id" gorm:"type:uuid;not null;uniqueIndex:idx_outfit_story_profile,priority:1"`
	ProfileKind ProfileKind    `json:"profile_kind" gorm:"type:varchar(32);not null;uniqueIndex:idx_outfit_story_profile,priority:2"`
	ProfileID   string         `json:"profile_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_outfit_story_profile,priority:3"`
	Top         string         `json:"top" gorm:"type:text"`
	Bottom      string         `json:"bottom" gorm:"type:text"`
	Shoes       string         `json:"shoes" gorm:"type:text"`
	Accessories pq.StringArray `json:"accessories" gorm:"type:text[]"`
	Palette     pq.StringArray `json:"palette" gorm:"type:text[]"`
	OutfitLock  bool           `json:"outfit_lock" gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (StoryCharacterOutfit) TableName() string {
	return "story_character_outfits"
}
