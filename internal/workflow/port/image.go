package port

import "context"

// ReferenceImage 参考图，用于保持角色外观一致
type ReferenceImage struct {
	ID   string
	URL  string
	Data []byte
}

// ImageRequest 图像生成请求
type ImageRequest struct {
	Prompt     string
	Size       string
	Quality    string
	References []ReferenceImage
}

// ImageResult 图像生成结果
type ImageResult struct {
	Data       []byte
	MIMEType   string
	Provider   string
	Model      string
	Usage      Usage
	ResponseID string
}

// ImageGenerator 图像生成能力
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (*ImageResult, error)
}
