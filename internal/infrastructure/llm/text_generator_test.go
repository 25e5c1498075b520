package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/workflow/port"
)

func testConfig() *config.LLMConfig {
	return &config.LLMConfig{
		DefaultProvider: "openai",
		VisionProvider:  "vision",
		Providers: map[string]config.ProviderConfig{
			"openai": {Model: "gpt-4.1-mini"},
			"vision": {Model: "gpt-4o"},
		},
	}
}

func TestGenerateMapsUsage(t *testing.T) {
	cm := &fakeChatModel{replies: []fakeReply{{msg: &schema.Message{
		Role:    schema.Assistant,
		Content: "hello",
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens:       120,
			CompletionTokens:   30,
			TotalTokens:        150,
			PromptTokenDetails: schema.PromptTokenDetails{CachedTokens: 100},
		}},
	}}}}
	g := NewTextGenerator(&fakeFactory{models: map[string]model.BaseChatModel{"openai": cm}}, testConfig())

	resp, err := g.Generate(context.Background(), port.TextRequest{System: "sys", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "gpt-4.1-mini", resp.Model)
	assert.Equal(t, port.Usage{InputTokens: 120, OutputTokens: 30, TotalTokens: 150, CachedInputTokens: 100}, resp.Usage)
	require.Len(t, cm.inputs[0], 2)
}

func TestGenerateFallsBackWhenSchemaUnsupported(t *testing.T) {
	cm := &fakeChatModel{replies: []fakeReply{
		{err: errors.New("400 Bad Request: unsupported parameter response_format")},
		{msg: &schema.Message{Role: schema.Assistant, Content: `{"ok":true}`}},
	}}
	g := NewTextGenerator(&fakeFactory{models: map[string]model.BaseChatModel{"openai": cm}}, testConfig())

	resp, err := g.Generate(context.Background(), port.TextRequest{
		User:   "x",
		Schema: &port.JSONSchema{Name: "probe", Schema: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, 2, cm.calls)
	assert.Equal(t, []int{1, 0}, cm.optLens)
}

func TestGenerateUsesVisionProviderWithImageParts(t *testing.T) {
	cm := &fakeChatModel{replies: []fakeReply{{msg: &schema.Message{Role: schema.Assistant, Content: "{}"}}}}
	g := NewTextGenerator(&fakeFactory{models: map[string]model.BaseChatModel{"vision": cm}}, testConfig())

	resp, err := g.Generate(context.Background(), port.TextRequest{
		User:      "describe",
		ImageURLs: []string{"https://example.com/kid.jpg"},
		Vision:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "vision", resp.Provider)
	msg := cm.inputs[0][0]
	require.Len(t, msg.MultiContent, 2)
	assert.Equal(t, schema.ChatMessagePartTypeImageURL, msg.MultiContent[1].Type)
}

func TestClassifyErrorExtractsStatus(t *testing.T) {
	err := classifyError("openai", errors.New("error, status code: 429, status: 429 Too Many Requests, message: slow down"))
	assert.True(t, port.IsTransient(err))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classifyError("openai", plain))
}
