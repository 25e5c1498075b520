package port

import "context"

// Usage 一次调用的 token 用量
type Usage struct {
	InputTokens           int `json:"input_tokens"`
	OutputTokens          int `json:"output_tokens"`
	TotalTokens           int `json:"total_tokens"`
	CachedInputTokens     int `json:"cached_input_tokens"`
	ReasoningOutputTokens int `json:"reasoning_output_tokens"`
}

// JSONSchema 以 response_format=json_schema 约束输出
type JSONSchema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

// TextRequest 文本生成请求
type TextRequest struct {
	System string
	User   string
	// ImageURLs 附带的图片（视觉模型），支持 http(s) 与 data URL
	ImageURLs []string

	Temperature      *float32
	MaxTokens        int
	FrequencyPenalty *float32
	PresencePenalty  *float32

	// Schema 非空时请求结构化输出，提供商不支持时退化为纯提示词约束
	Schema *JSONSchema
	// Vision 使用视觉提供商
	Vision bool
}

// TextResponse 文本生成结果
type TextResponse struct {
	Text       string
	Provider   string
	Model      string
	Usage      Usage
	ResponseID string
}

// TextGenerator LLM 文本生成能力
type TextGenerator interface {
	Generate(ctx context.Context, req TextRequest) (*TextResponse, error)
}

// Float32 返回指针，便于填写可选参数
func Float32(v float32) *float32 {
	return &v
}
