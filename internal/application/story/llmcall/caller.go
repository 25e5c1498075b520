// Package llmcall 封装带成本计量的文本生成调用
package llmcall

import (
	"context"
	"time"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/service"
	"bedtime-story-api/internal/workflow/port"
)

// Caller 每次调用恰好产生一条成本记录
type Caller struct {
	gen   port.TextGenerator
	meter *cost.Meter
}

// New 创建调用器；gen 为 nil 时所有调用返回 port.ErrNotConfigured
func New(gen port.TextGenerator, meter *cost.Meter) *Caller {
	if meter == nil {
		meter = cost.NewMeter(nil, nil)
	}
	return &Caller{gen: gen, meter: meter}
}

// WithMeter 返回使用指定计量器的副本
func (c *Caller) WithMeter(m *cost.Meter) *Caller {
	cp := *c
	cp.meter = m
	return &cp
}

// Meter 当前计量器
func (c *Caller) Meter() *cost.Meter {
	return c.meter
}

// Configured 是否配置了文本生成能力
func (c *Caller) Configured() bool {
	return c != nil && c.gen != nil
}

// Text 调用模型并计量
func (c *Caller) Text(ctx context.Context, step entity.CostStep, pageNumber *int, req port.TextRequest) (*port.TextResponse, error) {
	if !c.Configured() {
		return nil, port.ErrNotConfigured
	}

	ctx = service.WithStep(ctx, string(step))
	start := time.Now()
	resp, err := c.gen.Generate(ctx, req)

	entry := cost.Entry{
		PageNumber: pageNumber,
		Step:       step,
		Duration:   time.Since(start),
	}
	if resp != nil {
		entry.Provider = resp.Provider
		entry.Model = resp.Model
		entry.Usage = resp.Usage
		entry.ResponseID = resp.ResponseID
	}
	c.meter.Record(ctx, entry)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// PageRef 页码指针，便于填写可选字段
func PageRef(n int) *int {
	return &n
}
