package entity

import "time"

// RunStatus 插画任务状态
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IllustrationRun 一次整本插画生成任务的记录
type IllustrationRun struct {
	ID           string     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID      string     `json:"story_id" gorm:"type:uuid;not null;index"`
	Status       RunStatus  `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	PagesTotal   int        `json:"pages_total" gorm:"not null;default:0"`
	PagesReady   int        `json:"pages_ready" gorm:"not null;default:0"`
	PagesFailed  int        `json:"pages_failed" gorm:"not null;default:0"`
	CoverReady   bool       `json:"cover_ready" gorm:"not null;default:false"`
	ErrorMessage string     `json:"error_message,omitempty" gorm:"type:text"`
	DurationMs   int        `json:"duration_ms" gorm:"not null;default:0"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (IllustrationRun) TableName() string {
	return "illustration_runs"
}

// NewIllustrationRun 创建待执行任务
func NewIllustrationRun(storyID string) *IllustrationRun {
	return &IllustrationRun{
		StoryID:   storyID,
		Status:    RunStatusPending,
		CreatedAt: time.Now(),
	}
}

// Start 开始执行
func (r *IllustrationRun) Start(pagesTotal int) {
	now := time.Now()
	r.Status = RunStatusRunning
	r.PagesTotal = pagesTotal
	r.StartedAt = &now
}

// Complete 完成，部分页面失败仍视为完成
func (r *IllustrationRun) Complete(ready, failed int, coverReady bool) {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.PagesReady = ready
	r.PagesFailed = failed
	r.CoverReady = coverReady
	r.CompletedAt = &now
	if r.StartedAt != nil {
		r.DurationMs = int(now.Sub(*r.StartedAt).Milliseconds())
	}
}

// Fail 任务级失败，例如分页或加载故事失败
func (r *IllustrationRun) Fail(errMsg string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.ErrorMessage = errMsg
	r.CompletedAt = &now
	if r.StartedAt != nil {
		r.DurationMs = int(now.Sub(*r.StartedAt).Milliseconds())
	}
}
