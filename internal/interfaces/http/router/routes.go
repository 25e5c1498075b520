package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由，limit 只作用于触发模型调用的接口
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers, limit gin.HandlerFunc) {
	stories := v1.Group("/stories")
	{
		if h.Story != nil {
			stories.POST("/generate", limit, h.Story.Generate)
			stories.GET("/:sid/pages", h.Story.GetPages)
			stories.GET("/:sid/costs", h.Story.GetCosts)
		}
		if h.Illustration != nil {
			stories.POST("/:sid/illustrations", limit, h.Illustration.Start)
			stories.POST("/:sid/pages/:index/regenerate", limit, h.Illustration.Regenerate)
		}
	}
}
