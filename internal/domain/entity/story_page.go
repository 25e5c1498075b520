package entity

import (
	"time"

	"github.com/lib/pq"
)

// ImageStatus 页面插画状态
type ImageStatus string

const (
	ImageStatusPending    ImageStatus = "pending"
	ImageStatusGenerating ImageStatus = "generating"
	ImageStatusReady      ImageStatus = "ready"
	ImageStatusFailed     ImageStatus = "failed"
)

// SceneDescription 页面场景描述，首次使用时抽取并缓存到页面
type SceneDescription struct {
	Setting       string   `json:"setting"`
	Action        string   `json:"action"`
	Mood          string   `json:"mood"`
	TimeOfDay     string   `json:"time_of_day"`
	CameraFraming string   `json:"camera_framing"`
	Characters    []string `json:"characters"`
	Props         []string `json:"props"`
}

// StoryPage 故事页
type StoryPage struct {
	ID                    string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID               string            `json:"story_id" gorm:"type:uuid;not null;uniqueIndex:idx_story_pages_story_index,priority:1"`
	PageIndex             int               `json:"page_index" gorm:"not null;uniqueIndex:idx_story_pages_story_index,priority:2"`
	Text                  string            `json:"text" gorm:"type:text;not null"`
	ImageStatus           ImageStatus       `json:"image_status" gorm:"type:varchar(16);not null;default:'pending';index"`
	ImagePath             string            `json:"image_path,omitempty" gorm:"type:text"`
	ImageURL              string            `json:"image_url,omitempty" gorm:"type:text"`
	ImagePrompt           string            `json:"image_prompt,omitempty" gorm:"type:text"`
	Scene                 *SceneDescription `json:"scene_json,omitempty" gorm:"column:scene_json;type:jsonb;serializer:json"`
	UsedReferenceImageIDs pq.StringArray    `json:"used_reference_image_ids,omitempty" gorm:"type:text[]"`
	ErrorMessage          string            `json:"error_message,omitempty" gorm:"type:text"`
	Attempts              int               `json:"attempts" gorm:"not null;default:0"`
	CostUSD               float64           `json:"cost_usd" gorm:"not null;default:0"`
	CreatedAt             time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt             time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (StoryPage) TableName() string {
	return "story_pages"
}

// NeedsImage 是否需要(重新)生成插画
func (p *StoryPage) NeedsImage() bool {
	return p.ImageStatus == ImageStatusPending || p.ImageStatus == ImageStatusFailed || p.ImageStatus == ""
}

// PageNumber 面向读者的 1 起页码
func (p *StoryPage) PageNumber() int {
	return p.PageIndex + 1
}

// MarkGenerating 进入生成中
func (p *StoryPage) MarkGenerating() {
	p.ImageStatus = ImageStatusGenerating
	p.ErrorMessage = ""
}

// MarkReady 生成成功
func (p *StoryPage) MarkReady(path, url, prompt string, refs []string, cost float64) {
	p.ImageStatus = ImageStatusReady
	p.ImagePath = path
	p.ImageURL = url
	p.ImagePrompt = prompt
	p.UsedReferenceImageIDs = refs
	p.CostUSD += cost
	p.ErrorMessage = ""
}

// MarkFailed 生成失败，可重试
func (p *StoryPage) MarkFailed(msg string) {
	p.ImageStatus = ImageStatusFailed
	p.ErrorMessage = msg
}
