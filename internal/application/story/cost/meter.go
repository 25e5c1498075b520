package cost

import (
	"context"
	"sync"
	"time"

	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

// Ledger 成本台账的持久化端口
type Ledger interface {
	Create(ctx context.Context, row *entity.GenerationCost) error
}

// Entry 一次调用的计量输入
type Entry struct {
	StoryID    *string
	PageNumber *int
	Step       entity.CostStep
	Provider   string
	Model      string
	Usage      port.Usage
	ResponseID string
	Duration   time.Duration
}

// Meter 为每次调用生成恰好一条 CostRow，推送给回调并尽力写入台账
type Meter struct {
	prices  *PriceTable
	ledger  Ledger
	onRow   []func(entity.GenerationCost)
	storyID *string
}

// NewMeter 创建计量器，ledger 可为 nil
func NewMeter(prices *PriceTable, ledger Ledger) *Meter {
	if prices == nil {
		prices = NewPriceTable(nil)
	}
	return &Meter{prices: prices, ledger: ledger}
}

// WithCallback 返回追加了回调的副本
func (m *Meter) WithCallback(fn func(entity.GenerationCost)) *Meter {
	cp := *m
	cp.onRow = append(append([]func(entity.GenerationCost){}, m.onRow...), fn)
	return &cp
}

// WithLedger 返回使用指定台账的副本
func (m *Meter) WithLedger(l Ledger) *Meter {
	cp := *m
	cp.ledger = l
	return &cp
}

// ForStory 返回默认归属到指定故事的副本
func (m *Meter) ForStory(storyID string) *Meter {
	cp := *m
	cp.storyID = &storyID
	return &cp
}

// Prices 价格表
func (m *Meter) Prices() *PriceTable {
	return m.prices
}

// Record 计算成本并发出记录，台账写入失败只记录告警
func (m *Meter) Record(ctx context.Context, e Entry) entity.GenerationCost {
	storyID := e.StoryID
	if storyID == nil {
		storyID = m.storyID
	}

	total := e.Usage.TotalTokens
	if total == 0 {
		total = e.Usage.InputTokens + e.Usage.OutputTokens
	}
	row := entity.GenerationCost{
		StoryID:               storyID,
		PageNumber:            e.PageNumber,
		Step:                  e.Step,
		Provider:              e.Provider,
		Model:                 e.Model,
		InputTokens:           e.Usage.InputTokens,
		OutputTokens:          e.Usage.OutputTokens,
		TotalTokens:           total,
		CachedInputTokens:     e.Usage.CachedInputTokens,
		ReasoningOutputTokens: e.Usage.ReasoningOutputTokens,
		CostUSD:               m.prices.ComputeCostUSD(e.Model, e.Usage),
		ResponseID:            e.ResponseID,
		DurationMs:            int(e.Duration.Milliseconds()),
		CreatedAt:             time.Now(),
	}
	if _, ok := m.prices.Lookup(e.Model); !ok && e.Model != "" {
		logger.Debug(ctx, "no price for model, cost recorded as zero", "model", e.Model, "step", string(e.Step))
	}

	metrics.GenerationCostUSD.WithLabelValues(string(e.Step), e.Model).Add(row.CostUSD)

	for _, fn := range m.onRow {
		fn(row)
	}

	if m.ledger != nil {
		persisted := row
		if err := m.ledger.Create(ctx, &persisted); err != nil {
			logger.Warn(ctx, "failed to persist generation cost",
				"step", string(e.Step),
				"model", e.Model,
				"error", err.Error(),
			)
		}
	}
	return row
}

// Collector 收集一次请求内的全部成本记录
type Collector struct {
	mu   sync.Mutex
	rows []entity.GenerationCost
}

// Add 可直接作为 Meter 回调
func (c *Collector) Add(row entity.GenerationCost) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
}

// Rows 返回已收集记录的副本
func (c *Collector) Rows() []entity.GenerationCost {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.GenerationCost{}, c.rows...)
}

// TotalUSD 累计成本
func (c *Collector) TotalUSD() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum float64
	for _, r := range c.rows {
		sum += r.CostUSD
	}
	return sum
}
