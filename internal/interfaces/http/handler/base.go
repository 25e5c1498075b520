package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bedtime-story-api/internal/application/story"
	"bedtime-story-api/internal/application/story/illustration"
	"bedtime-story-api/internal/interfaces/http/dto"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/errors"
	"bedtime-story-api/pkg/logger"
)

// toAppError 把应用层哨兵错误映射为 AppError
func toAppError(err error) *errors.AppError {
	switch {
	case errors.IsAppError(err):
		return errors.AsAppError(err)
	case stderrors.Is(err, story.ErrInvalidInput):
		return errors.ErrValidationFailed.WithDetail(err.Error())
	case stderrors.Is(err, illustration.ErrStoryNotFound):
		return errors.ErrStoryNotFound
	case stderrors.Is(err, illustration.ErrPageNotFound):
		return errors.ErrPageNotFound
	case stderrors.Is(err, illustration.ErrRunInProgress):
		return errors.ErrConflict.WithDetail("illustration run already in progress")
	case stderrors.Is(err, port.ErrNotConfigured):
		return errors.ErrServiceUnavailable.WithDetail(err.Error()).WithError(err)
	case port.IsTransient(err):
		return errors.ErrServiceUnavailable.WithDetail("upstream provider is temporarily unavailable").WithError(err)
	default:
		return errors.ErrInternalError.WithError(err)
	}
}

// respondError 输出统一错误响应，5xx 记录日志
func respondError(c *gin.Context, op string, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), op+" failed", err)
	}
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
}
