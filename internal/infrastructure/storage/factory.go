package storage

import (
	"fmt"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/workflow/port"
)

// New 按 driver 构造对象存储
func New(cfg *config.StorageConfig) (port.BlobStore, error) {
	switch cfg.Driver {
	case "r2":
		s, err := NewR2Store(cfg.R2)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "local", "":
		s, err := NewLocalStore(cfg.Local)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
