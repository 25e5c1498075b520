package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"bedtime-story-api/internal/application/story"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/internal/interfaces/http/dto"
	"bedtime-story-api/pkg/errors"
)

// StoryGenerator 故事生成能力
type StoryGenerator interface {
	Generate(ctx context.Context, in *story.StoryGenerateInput) (*story.StoryGenerateOutput, error)
}

// StoryHandler 故事处理器
type StoryHandler struct {
	generator StoryGenerator
	stories   repository.StoryRepository
	pages     repository.StoryPageRepository
	runs      repository.IllustrationRunRepository
	costs     repository.GenerationCostRepository
}

// NewStoryHandler 创建故事处理器
func NewStoryHandler(
	generator StoryGenerator,
	stories repository.StoryRepository,
	pages repository.StoryPageRepository,
	runs repository.IllustrationRunRepository,
	costs repository.GenerationCostRepository,
) *StoryHandler {
	return &StoryHandler{
		generator: generator,
		stories:   stories,
		pages:     pages,
		runs:      runs,
		costs:     costs,
	}
}

// Generate 生成故事
// @Summary 生成睡前故事
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.GenerateStoryRequest true "生成参数"
// @Success 200 {object} dto.GenerateStoryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/stories/generate [post]
func (h *StoryHandler) Generate(c *gin.Context) {
	var req dto.GenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	out, err := h.generator.Generate(c.Request.Context(), req.ToInput())
	if err != nil {
		respondError(c, "generate story", err)
		return
	}
	dto.OK(c, dto.ToGenerateStoryResponse(out))
}

// GetPages 查询插画进度
// @Summary 查询故事页面与插画状态
// @Tags Stories
// @Produce json
// @Param sid path string true "故事 ID"
// @Success 200 {object} dto.StoryPagesResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/stories/{sid}/pages [get]
func (h *StoryHandler) GetPages(c *gin.Context) {
	ctx := c.Request.Context()
	storyID, err := dto.BindStoryID(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	st, err := h.stories.GetByID(ctx, storyID)
	if err != nil {
		respondError(c, "get story", err)
		return
	}
	if st == nil {
		respondError(c, "get story", errors.ErrStoryNotFound)
		return
	}

	var (
		pages []*entity.StoryPage
		run   *entity.IllustrationRun
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pages, err = h.pages.ListByStory(gctx, storyID)
		return err
	})
	if h.runs != nil {
		g.Go(func() error {
			var err error
			run, err = h.runs.LatestByStory(gctx, storyID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		respondError(c, "list pages", err)
		return
	}

	resp := &dto.StoryPagesResponse{
		StoryID:       st.ID,
		Status:        st.Status,
		CoverImageURL: st.CoverImageURL,
		LatestRun:     run,
		Pages:         make([]*dto.PageResponse, 0, len(pages)),
	}
	for _, p := range pages {
		resp.Pages = append(resp.Pages, dto.ToPageResponse(p))
	}
	dto.OK(c, resp)
}

// GetCosts 查询成本台账
// @Summary 查询故事生成成本
// @Tags Stories
// @Produce json
// @Param sid path string true "故事 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.StoryCostsResponse
// @Router /v1/stories/{sid}/costs [get]
func (h *StoryHandler) GetCosts(c *gin.Context) {
	ctx := c.Request.Context()
	storyID, err := dto.BindStoryID(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	pagination := dto.BindPagination(c)

	result, err := h.costs.ListByStory(ctx, storyID, pagination)
	if err != nil {
		respondError(c, "list costs", err)
		return
	}
	total, err := h.costs.SumByStory(ctx, storyID)
	if err != nil {
		respondError(c, "sum costs", err)
		return
	}

	items := result.Items
	if items == nil {
		items = []*entity.GenerationCost{}
	}
	dto.OK(c, &dto.StoryCostsResponse{
		StoryID:  storyID,
		TotalUSD: total,
		Items:    items,
		Meta:     dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)),
	})
}
