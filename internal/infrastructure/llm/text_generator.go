package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/domain/service"
	"bedtime-story-api/internal/workflow/node"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/logger"
)

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// TextGenerator 将 Eino ChatModel 适配为 port.TextGenerator
type TextGenerator struct {
	factory port.ChatModelFactory
	config  *config.LLMConfig
}

// NewTextGenerator 创建文本生成适配器
func NewTextGenerator(factory port.ChatModelFactory, cfg *config.LLMConfig) *TextGenerator {
	return &TextGenerator{factory: factory, config: cfg}
}

// Generate 执行一次生成；json_schema 不被支持时退化为纯提示词约束再试一次
func (g *TextGenerator) Generate(ctx context.Context, req port.TextRequest) (*port.TextResponse, error) {
	provider := g.config.DefaultProvider
	if req.Vision && g.config.VisionProvider != "" {
		provider = g.config.VisionProvider
	}
	cm, err := g.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	ctx = service.WithProvider(ctx, provider)
	msgs := buildMessages(req)

	out, err := cm.Generate(ctx, msgs, buildOptions(req, true)...)
	if err != nil && req.Schema != nil && node.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "response_format not supported by provider, fallback to prompt-only JSON",
			"provider", provider,
			"schema", req.Schema.Name,
			"error", err.Error(),
		)
		out, err = cm.Generate(ctx, msgs, buildOptions(req, false)...)
	}
	if err != nil {
		return nil, classifyError(provider, err)
	}

	resp := &port.TextResponse{
		Text:     out.Content,
		Provider: provider,
		Model:    g.config.Providers[provider].Model,
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		u := out.ResponseMeta.Usage
		resp.Usage = port.Usage{
			InputTokens:       u.PromptTokens,
			OutputTokens:      u.CompletionTokens,
			TotalTokens:       u.TotalTokens,
			CachedInputTokens: u.PromptTokenDetails.CachedTokens,
		}
	}
	return resp, nil
}

func buildMessages(req port.TextRequest) []*schema.Message {
	msgs := make([]*schema.Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	if len(req.ImageURLs) == 0 {
		return append(msgs, schema.UserMessage(req.User))
	}

	parts := []schema.ChatMessagePart{{Type: schema.ChatMessagePartTypeText, Text: req.User}}
	for _, u := range req.ImageURLs {
		parts = append(parts, schema.ChatMessagePart{
			Type:     schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{URL: u, Detail: schema.ImageURLDetailAuto},
		})
	}
	return append(msgs, &schema.Message{Role: schema.User, MultiContent: parts})
}

func buildOptions(req port.TextRequest, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 3)
	if req.Temperature != nil {
		opts = append(opts, model.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	extra := map[string]any{}
	if req.FrequencyPenalty != nil {
		extra["frequency_penalty"] = *req.FrequencyPenalty
	}
	if req.PresencePenalty != nil {
		extra["presence_penalty"] = *req.PresencePenalty
	}
	if enableSchema && req.Schema != nil {
		extra["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.Schema.Name,
				"strict": req.Schema.Strict,
				"schema": req.Schema.Schema,
			},
		}
	}
	if len(extra) > 0 {
		opts = append(opts, openaiopts.WithExtraFields(extra))
	}
	return opts
}

// classifyError 从错误文本中提取 HTTP 状态码，便于上层识别可重试错误
func classifyError(provider string, err error) error {
	m := statusCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return err
	}
	return &port.ProviderError{Provider: provider, StatusCode: code, Message: "chat completion failed", Err: err}
}
