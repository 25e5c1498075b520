package structured

import (
	"context"
	"sync"

	"bedtime-story-api/internal/workflow/port"
)

type scriptedReply struct {
	text string
	err  error
}

// scriptedGen 按顺序返回预设回复，记录每次请求
type scriptedGen struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []port.TextRequest
}

func (g *scriptedGen) Generate(_ context.Context, req port.TextRequest) (*port.TextResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.replies) == 0 {
		return &port.TextResponse{Text: "", Provider: "fake", Model: "gpt-4.1-mini"}, nil
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &port.TextResponse{Text: r.text, Provider: "fake", Model: "gpt-4.1-mini"}, nil
}

func (g *scriptedGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}
