// Package imagegen 提供图像生成提供商适配
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/workflow/port"
)

const (
	defaultOpenAIBase  = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-image-1"
	defaultImageSize   = "1024x1024"
)

// OpenAIClient OpenAI 兼容的 /images/generations 与 /images/edits 客户端
// 有参考图时走 edits，以保持角色外观一致
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	quality    string
	httpClient *http.Client
}

// NewOpenAIClient 创建 OpenAI 图像客户端
func NewOpenAIClient(cfg config.ImageProviderConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai image: %w", port.ErrNotConfigured)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultOpenAIBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		model:      model,
		size:       cfg.Size,
		quality:    cfg.Quality,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type openAIImageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate 生成一张图片
func (c *OpenAIClient) Generate(ctx context.Context, req port.ImageRequest) (*port.ImageResult, error) {
	size := firstNonEmpty(req.Size, c.size, defaultImageSize)
	quality := firstNonEmpty(req.Quality, c.quality)

	var (
		httpReq *http.Request
		err     error
	)
	refs := withData(req.References)
	if len(refs) == 0 {
		httpReq, err = c.generationsRequest(ctx, req.Prompt, size, quality)
	} else {
		httpReq, err = c.editsRequest(ctx, req.Prompt, size, quality, refs)
	}
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &port.ProviderError{Provider: "openai", StatusCode: http.StatusServiceUnavailable, Message: "request failed", Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &port.ProviderError{Provider: "openai", StatusCode: http.StatusBadGateway, Message: "read body", Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var eb openAIErrorBody
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		return nil, &port.ProviderError{Provider: "openai", StatusCode: res.StatusCode, Message: msg}
	}

	var parsed openAIImageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("openai image: decode response: %w", err)
	}
	data, err := c.firstImage(ctx, &parsed)
	if err != nil {
		return nil, err
	}

	out := &port.ImageResult{
		Data:     data,
		MIMEType: http.DetectContentType(data),
		Provider: "openai",
		Model:    c.model,
	}
	if parsed.Usage != nil {
		out.Usage = port.Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		}
	}
	if parsed.Created > 0 {
		out.ResponseID = fmt.Sprintf("img_%d", parsed.Created)
	}
	return out, nil
}

func (c *OpenAIClient) generationsRequest(ctx context.Context, prompt, size, quality string) (*http.Request, error) {
	body := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"size":   size,
		"n":      1,
	}
	if quality != "" {
		body["quality"] = quality
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *OpenAIClient) editsRequest(ctx context.Context, prompt, size, quality string, refs []port.ReferenceImage) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{"model": c.model, "prompt": prompt, "size": size, "n": "1"}
	if quality != "" {
		fields["quality"] = quality
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	for i, ref := range refs {
		mime := http.DetectContentType(ref.Data)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename="ref_%d.%s"`, i, extFor(mime)))
		h.Set("Content-Type", mime)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(ref.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func (c *OpenAIClient) firstImage(ctx context.Context, parsed *openAIImageResponse) ([]byte, error) {
	for _, d := range parsed.Data {
		if d.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				return nil, fmt.Errorf("openai image: decode b64: %w", err)
			}
			return data, nil
		}
		if d.URL != "" {
			return fetchURL(ctx, c.httpClient, d.URL)
		}
	}
	return nil, errors.New("openai image: no image returned")
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, &port.ProviderError{Provider: "http", StatusCode: http.StatusServiceUnavailable, Message: "fetch image", Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &port.ProviderError{Provider: "http", StatusCode: res.StatusCode, Message: "fetch image " + url}
	}
	return io.ReadAll(res.Body)
}

func withData(refs []port.ReferenceImage) []port.ReferenceImage {
	out := make([]port.ReferenceImage, 0, len(refs))
	for _, r := range refs {
		if len(r.Data) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func extFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
