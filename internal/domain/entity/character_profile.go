package entity

import "time"

// ProfileKind 档案类型
type ProfileKind string

const (
	ProfileKindKid   ProfileKind = "kid"
	ProfileKindAdult ProfileKind = "adult"
	ProfileKindPet   ProfileKind = "pet"
	// ProfileKindStoryCharacter 故事中虚构且无家庭档案的角色
	ProfileKindStoryCharacter ProfileKind = "story_character"
)

// CharacterProfile 家庭成员/宠物档案，由其他模块维护，此处只读
type CharacterProfile struct {
	Kind           ProfileKind       `json:"kind" gorm:"type:varchar(32);primaryKey"`
	ID             string            `json:"id" gorm:"type:varchar(128);primaryKey"`
	FamilyID       string            `json:"family_id,omitempty" gorm:"type:varchar(64);index"`
	Name           string            `json:"name" gorm:"type:varchar(128);not null"`
	Role           string            `json:"role,omitempty" gorm:"type:varchar(64)"`
	PhotoReference string            `json:"photo_reference,omitempty" gorm:"type:text"`
	Attributes     map[string]string `json:"attributes,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CharacterProfile) TableName() string {
	return "character_profiles"
}
