package dto

import (
	"time"

	"bedtime-story-api/internal/application/story"
	"bedtime-story-api/internal/domain/entity"
)

// StoryCharacterRequest 请求中的角色
type StoryCharacterRequest struct {
	Name        string   `json:"name" binding:"required"`
	Role        string   `json:"role,omitempty"`
	Traits      []string `json:"traits,omitempty"`
	ProfileKind string   `json:"profileKind,omitempty" binding:"omitempty,oneof=kid pet adult"`
	ProfileID   string   `json:"profileId,omitempty"`
}

// GenerateStoryRequest 生成故事请求
type GenerateStoryRequest struct {
	FamilyID      string                  `json:"familyId,omitempty"`
	Spark         string                  `json:"spark"`
	LengthMinutes int                     `json:"lengthMinutes" binding:"required"`
	AudienceAge   string                  `json:"audienceAge,omitempty"`
	Tone          string                  `json:"tone,omitempty"`
	Setting       string                  `json:"setting,omitempty"`
	Season        string                  `json:"season,omitempty"`
	TitleHint     string                  `json:"titleHint,omitempty"`
	Prompt        string                  `json:"prompt,omitempty"`
	Characters    []StoryCharacterRequest `json:"characters,omitempty" binding:"dive"`
}

// ToInput 转换为应用层输入
func (r *GenerateStoryRequest) ToInput() *story.StoryGenerateInput {
	in := &story.StoryGenerateInput{
		FamilyID:      r.FamilyID,
		Spark:         r.Spark,
		LengthMinutes: r.LengthMinutes,
		AudienceAge:   r.AudienceAge,
		Tone:          r.Tone,
		Setting:       r.Setting,
		Season:        r.Season,
		TitleHint:     r.TitleHint,
		Prompt:        r.Prompt,
	}
	for _, c := range r.Characters {
		in.Characters = append(in.Characters, story.StoryCharacterInput{
			Name:        c.Name,
			Role:        c.Role,
			Traits:      c.Traits,
			ProfileKind: entity.ProfileKind(c.ProfileKind),
			ProfileID:   c.ProfileID,
		})
	}
	return in
}

// GenerateStoryResponse 生成故事响应
type GenerateStoryResponse struct {
	StoryID          string                  `json:"storyId,omitempty"`
	Title            string                  `json:"title"`
	StoryText        string                  `json:"storyText"`
	Pages            []story.GeneratedPage   `json:"pages"`
	StoryBible       entity.StoryBible       `json:"storyBible"`
	BeatSheet        entity.BeatSheet        `json:"beatSheet"`
	ContinuityLedger entity.ContinuityLedger `json:"continuityLedger"`
	WordCount        int                     `json:"wordCount"`
	SceneCount       int                     `json:"sceneCount"`
	Warnings         []string                `json:"warnings"`
	GenerationCosts  []entity.GenerationCost `json:"generationCosts"`
}

// ToGenerateStoryResponse 转换生成结果
func ToGenerateStoryResponse(out *story.StoryGenerateOutput) *GenerateStoryResponse {
	resp := &GenerateStoryResponse{
		StoryID:          out.StoryID,
		Title:            out.Title,
		StoryText:        out.StoryText,
		Pages:            out.Pages,
		ContinuityLedger: out.Ledger,
		WordCount:        out.WordCount,
		SceneCount:       out.SceneCount,
		Warnings:         out.Warnings,
		GenerationCosts:  out.Costs,
	}
	if out.Plan != nil {
		resp.StoryBible = out.Plan.Bible
		resp.BeatSheet = out.Plan.BeatSheet
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if resp.GenerationCosts == nil {
		resp.GenerationCosts = []entity.GenerationCost{}
	}
	return resp
}

// PageResponse 页面状态
type PageResponse struct {
	PageIndex    int                      `json:"pageIndex"`
	PageNumber   int                      `json:"pageNumber"`
	Text         string                   `json:"text"`
	ImageStatus  entity.ImageStatus       `json:"imageStatus"`
	ImageURL     string                   `json:"imageUrl,omitempty"`
	ErrorMessage string                   `json:"errorMessage,omitempty"`
	Attempts     int                      `json:"attempts"`
	Scene        *entity.SceneDescription `json:"scene,omitempty"`
	UpdatedAt    time.Time                `json:"updatedAt"`
}

// ToPageResponse 转换页面
func ToPageResponse(p *entity.StoryPage) *PageResponse {
	return &PageResponse{
		PageIndex:    p.PageIndex,
		PageNumber:   p.PageNumber(),
		Text:         p.Text,
		ImageStatus:  p.ImageStatus,
		ImageURL:     p.ImageURL,
		ErrorMessage: p.ErrorMessage,
		Attempts:     p.Attempts,
		Scene:        p.Scene,
		UpdatedAt:    p.UpdatedAt,
	}
}

// StoryPagesResponse 轮询用的故事插画进度
type StoryPagesResponse struct {
	StoryID       string                  `json:"storyId"`
	Status        entity.StoryStatus      `json:"status"`
	CoverImageURL string                  `json:"coverImageUrl,omitempty"`
	LatestRun     *entity.IllustrationRun `json:"latestRun,omitempty"`
	Pages         []*PageResponse         `json:"pages"`
}

// StoryCostsResponse 成本明细
type StoryCostsResponse struct {
	StoryID  string                   `json:"storyId"`
	TotalUSD float64                  `json:"totalUsd"`
	Items    []*entity.GenerationCost `json:"items"`
	Meta     *PageMeta                `json:"meta"`
}
