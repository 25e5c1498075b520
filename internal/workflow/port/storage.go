package port

import "context"

// BlobStore 对象存储
type BlobStore interface {
	// Put 以覆盖方式写入，返回可公开访问的 URL
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// Get 读取对象
	Get(ctx context.Context, path string) ([]byte, error)

	// URL 返回对象的公开地址
	URL(path string) string
}
