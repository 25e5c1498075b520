package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/workflow/port"
)

const defaultGeminiModel = "gemini-2.5-flash-image"

// GeminiClient 基于 genai 的图像生成，参考图以 inline 数据随提示词发送
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient 创建 Gemini 图像客户端
func NewGeminiClient(ctx context.Context, cfg config.ImageProviderConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini image: %w", port.ErrNotConfigured)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Generate 生成一张图片
func (c *GeminiClient) Generate(ctx context.Context, req port.ImageRequest) (*port.ImageResult, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	for _, ref := range withData(req.References) {
		mime := http.DetectContentType(ref.Data)
		if !strings.HasPrefix(mime, "image/") {
			continue
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: ref.Data}})
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini image: empty response")
	}

	out := &port.ImageResult{Provider: "gemini", Model: c.model, ResponseID: resp.ResponseID}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			out.Data = part.InlineData.Data
			out.MIMEType = part.InlineData.MIMEType
			break
		}
	}
	if len(out.Data) == 0 {
		return nil, errors.New("gemini image: no image data")
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = port.Usage{
			InputTokens:       int(u.PromptTokenCount),
			OutputTokens:      int(u.CandidatesTokenCount),
			TotalTokens:       int(u.TotalTokenCount),
			CachedInputTokens: int(u.CachedContentTokenCount),
		}
	}
	return out, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &port.ProviderError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return &port.ProviderError{Provider: "gemini", StatusCode: http.StatusServiceUnavailable, Message: "request failed", Err: err}
}
