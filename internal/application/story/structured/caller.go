// Package structured 以 JSON Schema 约束模型输出，失败时发起修复子调用
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bedtime-story-api/internal/application/story/llmcall"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/node"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

const maxRepairInputRunes = 12000

// Schema 输出契约
type Schema[T any] struct {
	Name string
	// Description 修复提示中使用的精简描述，为空时使用 JSONSchema 序列化结果
	Description string
	JSONSchema  map[string]any
	// Validate 返回全部问题，空切片表示通过
	Validate func(v *T) []string
}

// Options 单次结构化调用参数
type Options struct {
	Step       entity.CostStep
	PageNumber *int

	System    string
	User      string
	ImageURLs []string
	Vision    bool

	Temperature *float32
	MaxTokens   int

	// Retries 额外尝试次数，总尝试次数为 Retries+1
	Retries int
}

// ValidationError 所有尝试均未产出合法结果
type ValidationError struct {
	Schema string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("structured output %s invalid: %s", e.Schema, strings.Join(e.Issues, "; "))
}

// Client 结构化调用依赖
type Client struct {
	caller    *llmcall.Caller
	prompts   *prompt.Registry
	retryBase time.Duration
}

// NewClient 创建结构化调用客户端
func NewClient(caller *llmcall.Caller, prompts *prompt.Registry) *Client {
	return &Client{caller: caller, prompts: prompts, retryBase: time.Second}
}

// WithRetryBase 设置瞬时错误的退避基数
func (c *Client) WithRetryBase(d time.Duration) *Client {
	cp := *c
	cp.retryBase = d
	return &cp
}

// WithCaller 返回使用指定调用器的副本
func (c *Client) WithCaller(caller *llmcall.Caller) *Client {
	cp := *c
	cp.caller = caller
	return &cp
}

// Caller 底层调用器
func (c *Client) Caller() *llmcall.Caller {
	return c.caller
}

// CallJSON 调用模型并返回满足 schema 的结果
// 非瞬时的提供商错误立即返回；瞬时错误退避后消耗一次尝试
func CallJSON[T any](ctx context.Context, c *Client, s Schema[T], opts Options) (*T, error) {
	attempts := opts.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()

	req := port.TextRequest{
		System:      opts.System,
		User:        opts.User,
		ImageURLs:   opts.ImageURLs,
		Vision:      opts.Vision,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Schema:      &port.JSONSchema{Name: s.Name, Schema: s.JSONSchema},
	}

	var issues []string
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.caller.Text(ctx, opts.Step, opts.PageNumber, req)
		if err != nil {
			if !port.IsTransient(err) {
				metrics.StructuredCallTotal.WithLabelValues(s.Name, "failed").Inc()
				return nil, err
			}
			issues = append(issues, fmt.Sprintf("attempt %d: %v", attempt, err))
			if attempt < attempts {
				if werr := wait(ctx, bo.NextBackOff()); werr != nil {
					return nil, werr
				}
			}
			continue
		}

		v, problems := decode(resp.Text, s)
		if len(problems) == 0 {
			metrics.StructuredCallTotal.WithLabelValues(s.Name, "ok").Inc()
			return v, nil
		}
		issues = append(issues, prefixed(attempt, problems)...)

		repairedText, rerr := repair(ctx, c, s, opts, resp.Text, problems)
		if rerr != nil {
			issues = append(issues, fmt.Sprintf("attempt %d repair: %v", attempt, rerr))
			continue
		}
		v, problems = decode(repairedText, s)
		if len(problems) == 0 {
			metrics.StructuredCallTotal.WithLabelValues(s.Name, "repaired").Inc()
			logger.Debug(ctx, "structured output repaired", "schema", s.Name, "attempt", attempt)
			return v, nil
		}
		issues = append(issues, prefixed(attempt, problems)...)
	}

	metrics.StructuredCallTotal.WithLabelValues(s.Name, "failed").Inc()
	return nil, &ValidationError{Schema: s.Name, Issues: issues}
}

func decode[T any](text string, s Schema[T]) (*T, []string) {
	raw := node.ExtractJSONObject(text)
	if raw == "" {
		return nil, []string{"no JSON object found in output"}
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, []string{fmt.Sprintf("invalid JSON: %v", err)}
	}
	if s.Validate != nil {
		if problems := s.Validate(&v); len(problems) > 0 {
			return nil, problems
		}
	}
	return &v, nil
}

func repair[T any](ctx context.Context, c *Client, s Schema[T], opts Options, invalid string, problems []string) (string, error) {
	description := s.Description
	if description == "" {
		b, _ := json.Marshal(s.JSONSchema)
		description = string(b)
	}
	system, user, err := c.prompts.Render(ctx, prompt.PromptJSONRepairV1, map[string]any{
		"schema_name":        s.Name,
		"schema_description": description,
		"validation_error":   strings.Join(problems, "; "),
		"invalid_output":     node.TruncateByRunes(invalid, maxRepairInputRunes),
	})
	if err != nil {
		return "", err
	}
	resp, err := c.caller.Text(ctx, entity.CostStepJSONRepair, opts.PageNumber, port.TextRequest{
		System:      system,
		User:        user,
		Temperature: port.Float32(0),
		MaxTokens:   opts.MaxTokens,
		Schema:      &port.JSONSchema{Name: s.Name, Schema: s.JSONSchema},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func prefixed(attempt int, problems []string) []string {
	out := make([]string, len(problems))
	for i, p := range problems {
		out[i] = fmt.Sprintf("attempt %d: %s", attempt, p)
	}
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
