// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/lib/pq"
)

// StoryStatus 故事状态
type StoryStatus string

const (
	StoryStatusDraft       StoryStatus = "draft"
	StoryStatusIllustrated StoryStatus = "illustrated"
)

// CoverSource 封面来源
type CoverSource string

const (
	CoverSourceNone  CoverSource = ""
	CoverSourceCall  CoverSource = "cover_call"
	CoverSourcePage0 CoverSource = "page_0"
)

// CastMember 故事角色与家庭档案的对应关系
type CastMember struct {
	Name        string      `json:"name"`
	ProfileKind ProfileKind `json:"profile_kind"`
	ProfileID   string      `json:"profile_id"`
}

// Story 故事
type Story struct {
	ID             string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FamilyID       string            `json:"family_id,omitempty" gorm:"type:varchar(64);index"`
	Title          string            `json:"title" gorm:"type:varchar(255);not null"`
	StoryText      string            `json:"story_text" gorm:"type:text"`
	LengthMinutes  int               `json:"length_minutes" gorm:"not null"`
	Spark          SparkType         `json:"spark" gorm:"type:varchar(32)"`
	AudienceAge    string            `json:"audience_age" gorm:"type:varchar(32)"`
	Tone           string            `json:"tone" gorm:"type:varchar(64)"`
	Setting        string            `json:"setting" gorm:"type:text"`
	Season         string            `json:"season,omitempty" gorm:"type:varchar(32)"`
	Bible          *StoryBible       `json:"story_bible,omitempty" gorm:"type:jsonb;serializer:json"`
	BeatSheet      *BeatSheet        `json:"beat_sheet,omitempty" gorm:"type:jsonb;serializer:json"`
	Ledger         *ContinuityLedger `json:"continuity_ledger,omitempty" gorm:"type:jsonb;serializer:json"`
	Cast           []CastMember      `json:"cast,omitempty" gorm:"type:jsonb;serializer:json"`
	CoverImagePath string            `json:"cover_image_path,omitempty" gorm:"type:text"`
	CoverImageURL  string            `json:"cover_image_url,omitempty" gorm:"type:text"`
	CoverSource    CoverSource       `json:"cover_source,omitempty" gorm:"type:varchar(16)"`
	WordCount      int               `json:"word_count" gorm:"not null;default:0"`
	Warnings       pq.StringArray    `json:"warnings,omitempty" gorm:"type:text[]"`
	Status         StoryStatus       `json:"status" gorm:"type:varchar(32);default:'draft'"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Story) TableName() string {
	return "stories"
}

// HasCover 是否已有封面
func (s *Story) HasCover() bool {
	return s.CoverImagePath != ""
}

// CastFor 按角色名查找档案映射
func (s *Story) CastFor(name string) (CastMember, bool) {
	for _, m := range s.Cast {
		if m.Name == name {
			return m, true
		}
	}
	return CastMember{}, false
}
