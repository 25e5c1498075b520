// Package port 定义流水线对外部能力的最小依赖
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按提供商名称获取 Eino ChatModel
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}
