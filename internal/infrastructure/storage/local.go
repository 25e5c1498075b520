package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bedtime-story-api/internal/config"
)

// LocalStore 本地文件系统存储，开发环境使用
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore 创建本地存储
func NewLocalStore(cfg config.LocalStorageConfig) (*LocalStore, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "./data/blobs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(cfg.PublicURL, "/")}, nil
}

// Put 覆盖写入
func (s *LocalStore) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create dir for %s: %w", path, err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", path, err)
	}
	return s.URL(path), nil
}

// Get 读取
func (s *LocalStore) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// URL 公开地址
func (s *LocalStore) URL(path string) string {
	return joinURL(s.publicURL, path)
}

// Dir 根目录，供 HTTP 层挂载静态文件
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.dir, clean), nil
}
