// Package prompt 管理内嵌的提示词模板
package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 模板标识，对应 templates/<id>.system.txt 与 templates/<id>.user.txt
type PromptID string

const (
	PromptStoryPlanV1         PromptID = "story_plan_v1"
	PromptPageDraftV1         PromptID = "page_draft_v1"
	PromptPageValidateV1      PromptID = "page_validate_v1"
	PromptLedgerUpdateV1      PromptID = "ledger_update_v1"
	PromptRepetitionRewriteV1 PromptID = "repetition_rewrite_v1"
	PromptJSONRepairV1        PromptID = "json_repair_v1"
	PromptIdentityExtractV1   PromptID = "identity_extract_v1"
	PromptOutfitV1            PromptID = "outfit_v1"
	PromptSceneExtractV1      PromptID = "scene_extract_v1"
)

var knownPrompts = map[PromptID]struct{}{
	PromptStoryPlanV1:         {},
	PromptPageDraftV1:         {},
	PromptPageValidateV1:      {},
	PromptLedgerUpdateV1:      {},
	PromptRepetitionRewriteV1: {},
	PromptJSONRepairV1:        {},
	PromptIdentityExtractV1:   {},
	PromptOutfitV1:            {},
	PromptSceneExtractV1:      {},
}

// Registry 模板注册表，模板按需解析后缓存
type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

// NewRegistry 创建模板注册表
func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

// ChatTemplate 返回 system+user 两条消息组成的 FString 模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	if _, ok := knownPrompts[id]; !ok {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}
	system, err := readEmbeddedText(fmt.Sprintf("templates/%s.system.txt", id))
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(fmt.Sprintf("templates/%s.user.txt", id))
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

// Render 渲染模板，返回 system 与 user 文本
func (r *Registry) Render(ctx context.Context, id PromptID, vars map[string]any) (string, string, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return "", "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", "", fmt.Errorf("render prompt %s: %w", id, err)
	}
	if len(msgs) != 2 {
		return "", "", fmt.Errorf("render prompt %s: expected 2 messages, got %d", id, len(msgs))
	}
	return msgs[0].Content, msgs[1].Content, nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
