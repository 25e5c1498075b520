// Package service 定义跨层共享的调用上下文约定
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyStep     llmCtxKey = "llm_step"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
)

const unknown = "unknown"

// WithStep 标记当前调用所属的流水线步骤（plan/page_draft/...），用于指标与追踪
func WithStep(ctx context.Context, step string) context.Context {
	s := strings.TrimSpace(step)
	if s == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyStep, s)
}

// WithProvider 标记当前调用的提供商
func WithProvider(ctx context.Context, provider string) context.Context {
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

// WithStepProvider 同时标记步骤与提供商
func WithStepProvider(ctx context.Context, step, provider string) context.Context {
	return WithProvider(WithStep(ctx, step), provider)
}

// StepFromContext 读取步骤，缺省为 unknown
func StepFromContext(ctx context.Context) string {
	return stringValue(ctx, llmCtxKeyStep)
}

// ProviderFromContext 读取提供商，缺省为 unknown
func ProviderFromContext(ctx context.Context) string {
	return stringValue(ctx, llmCtxKeyProvider)
}

func stringValue(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknown
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
