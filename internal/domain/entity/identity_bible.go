package entity

import (
	"time"

	"github.com/lib/pq"
)

// IdentityStatus 形象版本状态
type IdentityStatus string

const (
	IdentityStatusActive     IdentityStatus = "active"
	IdentityStatusSuperseded IdentityStatus = "superseded"
)

// IdentityBible 角色稳定外观，按 (profile, source_hash) 版本化
type IdentityBible struct {
	ID              string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProfileKind     ProfileKind    `json:"profile_kind" gorm:"type:varchar(32);not null;uniqueIndex:idx_identity_profile_version,priority:1;index:idx_identity_lookup,priority:1"`
	ProfileID       string         `json:"profile_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_identity_profile_version,priority:2;index:idx_identity_lookup,priority:2"`
	Version         int            `json:"version" gorm:"not null;uniqueIndex:idx_identity_profile_version,priority:3"`
	SourceHash      string         `json:"source_hash" gorm:"type:char(64);not null;index:idx_identity_lookup,priority:3"`
	Status          IdentityStatus `json:"status" gorm:"type:varchar(16);not null;default:'active'"`
	Name            string         `json:"name" gorm:"type:varchar(128)"`
	Hair            string         `json:"hair" gorm:"type:text"`
	Eyes            string         `json:"eyes" gorm:"type:text"`
	SkinTone        string         `json:"skin_tone" gorm:"type:text"`
	FaceFeatures    string         `json:"face_features" gorm:"type:text"`
	BodyProportions string         `json:"body_proportions" gorm:"type:text"`
	MustKeep        pq.StringArray `json:"must_keep" gorm:"type:text[]"`
	MustNot         pq.StringArray `json:"must_not" gorm:"type:text[]"`
	Seed            int64          `json:"seed" gorm:"not null;default:0"`
	FromPhoto       bool           `json:"from_photo" gorm:"not null;default:false"`
	PortraitPath    string         `json:"portrait_path,omitempty" gorm:"type:text"`
	PortraitURL     string         `json:"portrait_url,omitempty" gorm:"type:text"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (IdentityBible) TableName() string {
	return "identity_bibles"
}

// IsActive 是否为当前生效版本
func (b *IdentityBible) IsActive() bool {
	return b.Status == IdentityStatusActive
}

// HasPortrait 是否已生成参考肖像
func (b *IdentityBible) HasPortrait() bool {
	return b.PortraitPath != ""
}
