// Package logger 提供基于 slog 的结构化日志
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey 用于从 context 中提取日志字段的键类型
type ContextKey string

// 预定义的 context 键
const (
	TraceIDKey   ContextKey = "trace_id"
	SpanIDKey    ContextKey = "span_id"
	RequestIDKey ContextKey = "request_id"
	StoryIDKey   ContextKey = "story_id"
	PageIndexKey ContextKey = "page_index"
	JobIDKey     ContextKey = "job_id"
)

var contextKeys = []ContextKey{TraceIDKey, SpanIDKey, RequestIDKey, StoryIDKey, PageIndexKey, JobIDKey}

var defaultLogger *slog.Logger

// Init 初始化日志器，输出到 stdout
func Init(level string, format string) {
	InitWithWriter(os.Stdout, level, format)
}

// InitWithWriter 初始化日志器并指定输出
func InitWithWriter(w io.Writer, level string, format string) {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: strings.ToLower(level) == "debug",
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default 返回默认日志器
func Default() *slog.Logger {
	if defaultLogger == nil {
		Init("info", "json")
	}
	return defaultLogger
}

// FromContext 从 Context 提取追踪与业务字段
func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	if ctx == nil {
		return l
	}
	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			l = l.With(string(key), v)
		}
	}
	return l
}

// WithContext 将日志字段注入到 context
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// WithStory 注入 story_id
func WithStory(ctx context.Context, storyID string) context.Context {
	return WithContext(ctx, StoryIDKey, storyID)
}

// Info 记录 INFO 级别日志
func Info(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

// Debug 记录 DEBUG 级别日志
func Debug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

// Warn 记录 WARN 级别日志
func Warn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

// Error 记录 ERROR 级别日志
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	FromContext(ctx).Error(msg, args...)
}

// Fatal 记录错误并退出进程
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	Error(ctx, msg, err, args...)
	os.Exit(1)
}
