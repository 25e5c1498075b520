// Package storage 提供插画与肖像的对象存储
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bedtime-story-api/internal/config"
)

var tracer = otel.Tracer("storage")

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("storage: object not found")

// R2Store Cloudflare R2（S3 兼容），path-style 覆盖写
type R2Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewR2Store 创建 R2 存储
func NewR2Store(cfg config.R2Config) (*R2Store, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, errors.New("r2 storage requires account_id, access_key_id, secret_access_key and bucket")
	}
	client := s3.New(s3.Options{
		Region:       "auto",
		BaseEndpoint: aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true,
	})
	return &R2Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Put 写入对象并返回公开地址
func (s *R2Store) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "storage.r2.Put",
		trace.WithAttributes(attribute.String("storage.path", path), attribute.Int("storage.bytes", len(data))))
	defer span.End()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to put object %s: %w", path, err)
	}
	return s.URL(path), nil
}

// Get 读取对象
func (s *R2Store) Get(ctx context.Context, path string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "storage.r2.Get",
		trace.WithAttributes(attribute.String("storage.path", path)))
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object %s: %w", path, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// URL 公开地址
func (s *R2Store) URL(path string) string {
	return joinURL(s.publicURL, path)
}

func joinURL(base, path string) string {
	path = strings.TrimLeft(path, "/")
	if base == "" {
		return "/" + path
	}
	return base + "/" + path
}
