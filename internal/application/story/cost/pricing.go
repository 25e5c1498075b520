// Package cost 计算并记录每次模型调用的成本
package cost

import (
	"strings"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/workflow/port"
)

// Price 每百万 token 的美元价格
type Price struct {
	Input       float64
	CachedInput float64
	Output      float64
}

var defaultPrices = map[string]Price{
	"gpt-4.1":                {Input: 2.00, CachedInput: 0.50, Output: 8.00},
	"gpt-4.1-mini":           {Input: 0.40, CachedInput: 0.10, Output: 1.60},
	"gpt-4.1-nano":           {Input: 0.10, CachedInput: 0.025, Output: 0.40},
	"gpt-4o":                 {Input: 2.50, CachedInput: 1.25, Output: 10.00},
	"gpt-4o-mini":            {Input: 0.15, CachedInput: 0.075, Output: 0.60},
	"gpt-image-1":            {Input: 5.00, CachedInput: 1.25, Output: 40.00},
	"gpt-image-1-mini":       {Input: 2.00, CachedInput: 0.20, Output: 8.00},
	"gemini-2.5-flash-image": {Input: 0.30, CachedInput: 0.03, Output: 30.00},
}

// PriceTable 模型价格表
type PriceTable struct {
	prices map[string]Price
}

// NewPriceTable 内置价格加配置覆盖
func NewPriceTable(overrides []config.PriceConfig) *PriceTable {
	prices := make(map[string]Price, len(defaultPrices)+len(overrides))
	for k, v := range defaultPrices {
		prices[k] = v
	}
	for _, o := range overrides {
		name := strings.ToLower(strings.TrimSpace(o.Model))
		if name == "" {
			continue
		}
		prices[name] = Price{Input: o.Input, CachedInput: o.CachedInput, Output: o.Output}
	}
	return &PriceTable{prices: prices}
}

// Lookup 查找模型价格，带日期后缀的快照名（gpt-4.1-mini-2025-04-14）回退到基础名
func (t *PriceTable) Lookup(model string) (Price, bool) {
	name := strings.ToLower(strings.TrimSpace(model))
	if p, ok := t.prices[name]; ok {
		return p, true
	}
	for base, p := range t.prices {
		if strings.HasPrefix(name, base+"-20") {
			return p, true
		}
	}
	return Price{}, false
}

// ComputeCostUSD 计算一次调用的成本，未知模型返回 0
func (t *PriceTable) ComputeCostUSD(model string, usage port.Usage) float64 {
	p, ok := t.Lookup(model)
	if !ok {
		return 0
	}
	const perToken = 1.0 / 1_000_000

	input := float64(usage.InputTokens) * p.Input
	if usage.CachedInputTokens > 0 {
		uncached := usage.InputTokens - usage.CachedInputTokens
		if uncached < 0 {
			uncached = 0
		}
		input = float64(uncached)*p.Input + float64(usage.CachedInputTokens)*p.CachedInput
	}
	output := float64(usage.OutputTokens) * p.Output
	return (input + output) * perToken
}
