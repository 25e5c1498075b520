// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"bedtime-story-api/internal/domain/repository"
)

// TxManager 事务管理器
type TxManager struct {
	client *Client
}

// NewTxManager 创建事务管理器
func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction 在事务中执行操作，已在事务中时直接复用
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := getTxFromContext(ctx); tx != nil {
		return fn(ctx)
	}
	return m.client.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, repository.TxKey{}, tx))
	})
}

// getTxFromContext 从上下文获取事务
func getTxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// getDB 根据上下文获取连接，事务内返回事务句柄
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := getTxFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// translate 唯一约束冲突转换为 repository.ErrDuplicate
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicate
	}
	return err
}
