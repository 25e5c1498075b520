package entity

import "time"

// CostStep 计费步骤
type CostStep string

const (
	CostStepPlan              CostStep = "plan"
	CostStepPageDraft         CostStep = "page_draft"
	CostStepPageValidate      CostStep = "page_validate"
	CostStepLedgerUpdate      CostStep = "ledger_update"
	CostStepRepetitionRewrite CostStep = "repetition_rewrite"
	CostStepJSONRepair        CostStep = "json_repair"
	CostStepIdentityExtract   CostStep = "identity_extract"
	CostStepOutfit            CostStep = "outfit"
	CostStepSceneExtract      CostStep = "scene_extract"
	CostStepPortraitImage     CostStep = "portrait_image"
	CostStepCoverImage        CostStep = "cover_image"
	CostStepPageImage         CostStep = "page_image"
)

// GenerationCost 单次 LLM/图像调用的成本记录，只追加不修改
type GenerationCost struct {
	ID                    string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID               *string   `json:"story_id,omitempty" gorm:"type:uuid;index"`
	PageNumber            *int      `json:"page_number,omitempty"`
	Step                  CostStep  `json:"step" gorm:"type:varchar(32);not null"`
	Provider              string    `json:"provider" gorm:"type:varchar(32);not null"`
	Model                 string    `json:"model" gorm:"type:varchar(64);not null"`
	InputTokens           int       `json:"input_tokens" gorm:"not null;default:0"`
	OutputTokens          int       `json:"output_tokens" gorm:"not null;default:0"`
	TotalTokens           int       `json:"total_tokens" gorm:"not null;default:0"`
	CachedInputTokens     int       `json:"cached_input_tokens" gorm:"not null;default:0"`
	ReasoningOutputTokens int       `json:"reasoning_output_tokens" gorm:"not null;default:0"`
	CostUSD               float64   `json:"cost_usd" gorm:"type:numeric(12,6);not null;default:0"`
	ResponseID            string    `json:"response_id,omitempty" gorm:"type:varchar(128)"`
	DurationMs            int       `json:"duration_ms" gorm:"not null;default:0"`
	CreatedAt             time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (GenerationCost) TableName() string {
	return "generation_costs"
}
