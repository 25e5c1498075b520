package draft

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bedtime-story-api/internal/domain/service"
	"bedtime-story-api/internal/workflow/port"
)

// stepGen 按调用步骤分派回复
type stepGen struct {
	mu      sync.Mutex
	respond func(step string, n int, req port.TextRequest) (string, error)
	counts  map[string]int
}

func newStepGen(respond func(step string, n int, req port.TextRequest) (string, error)) *stepGen {
	return &stepGen{respond: respond, counts: map[string]int{}}
}

func (g *stepGen) Generate(ctx context.Context, req port.TextRequest) (*port.TextResponse, error) {
	step := service.StepFromContext(ctx)
	g.mu.Lock()
	g.counts[step]++
	n := g.counts[step]
	g.mu.Unlock()

	text, err := g.respond(step, n, req)
	if err != nil {
		return nil, err
	}
	return &port.TextResponse{Text: text, Provider: "fake", Model: "gpt-4.1-mini"}, nil
}

func (g *stepGen) count(step string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[step]
}

// uniqueText 生成不含重复三元组的文本
func uniqueText(prefix string, words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = fmt.Sprintf("%sw%d", prefix, i)
	}
	return strings.Join(parts, " ") + "."
}
