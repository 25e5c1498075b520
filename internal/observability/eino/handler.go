// Package eino 为 Eino 组件注册全局回调，输出 LLM 指标与追踪
package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bedtime-story-api/internal/domain/service"
	"bedtime-story-api/pkg/metrics"
)

type startTimeKey struct{}

type modelKey struct{}

// newChatModelCallbackHandler 每次 ChatModel 调用记录次数、耗时、token 与 span
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			modelName := modelNameFromInput(input)
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			ctx = context.WithValue(ctx, modelKey{}, modelName)

			attrs := []attribute.KeyValue{
				attribute.String("story.step", service.StepFromContext(ctx)),
				attribute.String("llm.provider", service.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelName),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.node_name", info.Name))
			}
			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			provider := service.ProviderFromContext(ctx)
			modelName := modelNameFromOutput(output)
			if modelName == "" {
				modelName, _ = ctx.Value(modelKey{}).(string)
			}

			metrics.LLMCallTotal.WithLabelValues(provider, modelName, "success").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(output.TokenUsage.PromptTokens))
				metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(output.TokenUsage.CompletionTokens))
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", output.TokenUsage.PromptTokens),
					attribute.Int("llm.completion_tokens", output.TokenUsage.CompletionTokens),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			provider := service.ProviderFromContext(ctx)
			modelName, _ := ctx.Value(modelKey{}).(string)

			metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
