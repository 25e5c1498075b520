package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"bedtime-story-api/internal/application/story/illustration"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/interfaces/http/dto"
)

// IllustrationService 插画任务能力
type IllustrationService interface {
	StartStoryIllustrationGeneration(ctx context.Context, storyID string) (*illustration.StartResult, error)
	RegeneratePage(ctx context.Context, storyID string, pageIndex int) (*entity.StoryPage, error)
}

// IllustrationHandler 插画处理器
type IllustrationHandler struct {
	svc IllustrationService
}

// NewIllustrationHandler 创建插画处理器
func NewIllustrationHandler(svc IllustrationService) *IllustrationHandler {
	return &IllustrationHandler{svc: svc}
}

// Start 启动整本插画任务，立即返回
// @Summary 启动故事插画生成
// @Tags Illustrations
// @Produce json
// @Param sid path string true "故事 ID"
// @Success 202 {object} illustration.StartResult
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/stories/{sid}/illustrations [post]
func (h *IllustrationHandler) Start(c *gin.Context) {
	storyID, err := dto.BindStoryID(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.StartStoryIllustrationGeneration(c.Request.Context(), storyID)
	if err != nil {
		respondError(c, "start illustration", err)
		return
	}
	dto.Accepted(c, res)
}

// Regenerate 同步重绘单页
// @Summary 重新生成单页插画
// @Tags Illustrations
// @Produce json
// @Param sid path string true "故事 ID"
// @Param index path int true "页序，0 起"
// @Success 200 {object} dto.PageResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/stories/{sid}/pages/{index}/regenerate [post]
func (h *IllustrationHandler) Regenerate(c *gin.Context) {
	storyID, err := dto.BindStoryID(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	index, err := dto.BindPageIndex(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	page, err := h.svc.RegeneratePage(c.Request.Context(), storyID, index)
	if err != nil {
		respondError(c, "regenerate page", err)
		return
	}
	dto.OK(c, dto.ToPageResponse(page))
}
