package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/llmcall"
	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/node"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/internal/workflow/prompt"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

// Result 起草结果，页面数与节拍数一致
type Result struct {
	Pages      []string
	StoryText  string
	Ledger     entity.ContinuityLedger
	WordCount  int
	Targets    WordTargets
	Repetition RepetitionReport
	Warnings   []string
}

// Engine 起草与改写引擎
type Engine struct {
	client     *structured.Client
	prompts    *prompt.Registry
	cfg        config.DraftConfig
	thresholds RepetitionThresholds
	retries    int
}

// NewEngine 创建起草引擎，client 为 nil 时全部页面走模板兜底
func NewEngine(client *structured.Client, prompts *prompt.Registry, cfg config.DraftConfig, rep config.RepetitionConfig, structuredRetries int) *Engine {
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = DefaultWordsPerMinute
	}
	if cfg.MinPageWords <= 0 {
		cfg.MinPageWords = 80
	}
	if cfg.FactsCap <= 0 {
		cfg.FactsCap = 60
	}
	if cfg.ThreadsCap <= 0 {
		cfg.ThreadsCap = 30
	}
	th := DefaultRepetitionThresholds
	if rep.TrigramRatio > 0 {
		th.TrigramRatio = rep.TrigramRatio
	}
	if rep.MaxDuplicateParagraphs > 0 {
		th.MaxDuplicateParagraphs = rep.MaxDuplicateParagraphs
	}
	return &Engine{client: client, prompts: prompts, cfg: cfg, thresholds: th, retries: structuredRetries}
}

// WithMeter 返回计量到指定计量器的副本
func (e *Engine) WithMeter(m *cost.Meter) *Engine {
	cp := *e
	if e.client != nil && e.client.Caller() != nil {
		cp.client = e.client.WithCaller(e.client.Caller().WithMeter(m))
	}
	return &cp
}

// Draft 按节拍顺序逐页起草；所有失败降级为警告，仅在 ctx 取消时返回错误
func (e *Engine) Draft(ctx context.Context, plan *entity.StoryPlan, minutes int) (*Result, error) {
	if plan == nil || len(plan.BeatSheet.Pages) == 0 {
		return nil, errors.New("draft: plan has no beats")
	}

	beats := plan.BeatSheet.Pages
	overall := WordTargetsFor(minutes, e.cfg.WordsPerMinute)
	perPage := PageTargets(overall, len(beats), e.cfg.MinPageWords)
	hero := heroName(&plan.Bible)

	res := &Result{Targets: overall, Ledger: plan.Ledger.Clone()}
	pages := make([]string, 0, len(beats))

	for _, beat := range beats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, warn := e.draftPage(ctx, plan, beat, len(beats), pages, res.Ledger, perPage, hero)
		if warn != "" {
			res.addWarning(ctx, warn, "page")
		}
		pages = append(pages, text)
		res.Ledger = e.updateLedger(ctx, res.Ledger, beat.PageNumber, text)
	}

	report := DetectRepetition(joinPages(pages), e.thresholds)
	if report.HasProblem {
		rewritten, err := e.rewriteRepetition(ctx, pages, report)
		if err != nil {
			logger.Warn(ctx, "repetition rewrite failed", "error", err)
		} else {
			pages = rewritten
			report = DetectRepetition(joinPages(pages), e.thresholds)
		}
		if report.HasProblem {
			res.addWarning(ctx, fmt.Sprintf("story still contains repetition (trigram repeat ratio %.3f, %d duplicate paragraphs)",
				report.TrigramRepeatRatio, len(report.DuplicateParagraphs)), "repetition")
		}
	}

	if countPages(pages) < overall.Min {
		pages = padStory(pages, hero, overall.Min)
	}
	words := countPages(pages)
	switch {
	case words < overall.Min:
		res.addWarning(ctx, fmt.Sprintf("story has %d words, below the minimum of %d", words, overall.Min), "length_short")
	case words > overall.Max:
		res.addWarning(ctx, fmt.Sprintf("story has %d words, above the maximum of %d", words, overall.Max), "length_long")
	}

	res.Pages = pages
	res.StoryText = joinPages(pages)
	res.WordCount = words
	res.Repetition = report
	return res, nil
}

func (r *Result) addWarning(ctx context.Context, msg, kind string) {
	r.Warnings = append(r.Warnings, msg)
	metrics.PipelineWarningsTotal.WithLabelValues(kind).Inc()
	logger.Warn(ctx, "draft warning", "kind", kind, "warning", msg)
}

// draftPage 生成 → 校验 → 必要时重写一次；模型不可用时使用模板页
func (e *Engine) draftPage(ctx context.Context, plan *entity.StoryPlan, beat entity.Beat, pageCount int, previous []string, ledger entity.ContinuityLedger, target WordTargets, hero string) (string, string) {
	text, err := e.writePage(ctx, plan, beat, pageCount, previous, ledger, target, nil)
	if err != nil {
		if !errors.Is(err, port.ErrNotConfigured) {
			logger.Warn(ctx, "page draft failed, using template page", "page", beat.PageNumber, "error", err)
			metrics.PipelineFallbackTotal.WithLabelValues("draft").Inc()
			return FallbackPage(beat, hero, target), fmt.Sprintf("page %d: draft generation failed, used template text", beat.PageNumber)
		}
		return FallbackPage(beat, hero, target), ""
	}

	check, err := e.validatePage(ctx, plan, beat, pageCount, ledger, target, text)
	if err != nil {
		logger.Warn(ctx, "page validation unavailable", "page", beat.PageNumber, "error", err)
		return text, ""
	}
	if check.OK {
		return text, ""
	}
	if corrected := strings.TrimSpace(check.CorrectedText); corrected != "" {
		return corrected, ""
	}

	regenerated, err := e.writePage(ctx, plan, beat, pageCount, previous, ledger, target, check.Issues)
	if err != nil {
		return text, fmt.Sprintf("page %d: continuity issues left uncorrected: %s", beat.PageNumber, strings.Join(check.Issues, "; "))
	}
	return regenerated, ""
}

func (e *Engine) caller() *llmcall.Caller {
	if e.client == nil {
		return nil
	}
	return e.client.Caller()
}

func (e *Engine) writePage(ctx context.Context, plan *entity.StoryPlan, beat entity.Beat, pageCount int, previous []string, ledger entity.ContinuityLedger, target WordTargets, issues []string) (string, error) {
	caller := e.caller()
	if !caller.Configured() {
		return "", port.ErrNotConfigured
	}

	issueBlock := ""
	if len(issues) > 0 {
		issueBlock = "Fix these problems from the previous attempt:\n" + node.BulletList(issues, "")
	}
	system, user, err := e.prompts.Render(ctx, prompt.PromptPageDraftV1, map[string]any{
		"bible":            bibleBlock(&plan.Bible),
		"ledger":           ledgerBlock(ledger),
		"previous_pages":   previousBlock(previous),
		"page_number":      beat.PageNumber,
		"page_count":       pageCount,
		"beat_goal":        beat.BeatGoal,
		"must_include":     node.BulletList(beat.MustInclude, "- nothing specific"),
		"must_not_include": node.BulletList(beat.MustNotInclude, "- nothing specific"),
		"transition":       valueOr(beat.Transition, "none"),
		"word_min":         target.Min,
		"word_max":         target.Max,
		"issues":           issueBlock,
	})
	if err != nil {
		return "", err
	}

	req := port.TextRequest{
		System:    system,
		User:      user,
		MaxTokens: target.Max * 3,
	}
	if e.cfg.Temperature > 0 {
		req.Temperature = port.Float32(float32(e.cfg.Temperature))
	}
	if e.cfg.FrequencyPenalty != 0 {
		req.FrequencyPenalty = port.Float32(float32(e.cfg.FrequencyPenalty))
	}
	if e.cfg.PresencePenalty != 0 {
		req.PresencePenalty = port.Float32(float32(e.cfg.PresencePenalty))
	}

	resp, err := caller.Text(ctx, entity.CostStepPageDraft, llmcall.PageRef(beat.PageNumber), req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(node.StripCodeFences(resp.Text))
	if text == "" {
		return "", errors.New("empty page text")
	}
	return text, nil
}

type pageCheck struct {
	OK            bool     `json:"ok"`
	Issues        []string `json:"issues"`
	CorrectedText string   `json:"corrected_text"`
}

var pageCheckSchema = structured.Schema[pageCheck]{
	Name:        "page_check",
	Description: "{ok:boolean, issues:string[], corrected_text:string}",
	JSONSchema: structured.Object(map[string]any{
		"ok":             map[string]any{"type": "boolean"},
		"issues":         structured.StringArray(),
		"corrected_text": structured.String(),
	}),
	Validate: func(c *pageCheck) []string {
		if !c.OK && len(c.Issues) == 0 && strings.TrimSpace(c.CorrectedText) == "" {
			return []string{"issues must be listed when ok is false"}
		}
		return nil
	},
}

func (e *Engine) validatePage(ctx context.Context, plan *entity.StoryPlan, beat entity.Beat, pageCount int, ledger entity.ContinuityLedger, target WordTargets, text string) (*pageCheck, error) {
	system, user, err := e.prompts.Render(ctx, prompt.PromptPageValidateV1, map[string]any{
		"bible":            bibleBlock(&plan.Bible),
		"ledger":           ledgerBlock(ledger),
		"page_number":      beat.PageNumber,
		"page_count":       pageCount,
		"beat_goal":        beat.BeatGoal,
		"must_include":     node.BulletList(beat.MustInclude, "- nothing specific"),
		"must_not_include": node.BulletList(beat.MustNotInclude, "- nothing specific"),
		"word_min":         target.Min,
		"word_max":         target.Max,
		"page_text":        text,
	})
	if err != nil {
		return nil, err
	}
	return structured.CallJSON(ctx, e.client, pageCheckSchema, structured.Options{
		Step:        entity.CostStepPageValidate,
		PageNumber:  llmcall.PageRef(beat.PageNumber),
		System:      system,
		User:        user,
		Temperature: port.Float32(0),
		MaxTokens:   target.Max*3 + 400,
		Retries:     e.retries,
	})
}

var ledgerUpdateSchema = structured.Schema[LedgerUpdate]{
	Name:        "ledger_update",
	Description: "{new_facts:string[], new_open_threads:string[], resolved_threads:string[]}",
	JSONSchema: structured.Object(map[string]any{
		"new_facts":        structured.StringArray(),
		"new_open_threads": structured.StringArray(),
		"resolved_threads": structured.StringArray(),
	}),
}

func (e *Engine) updateLedger(ctx context.Context, ledger entity.ContinuityLedger, pageNumber int, text string) entity.ContinuityLedger {
	if !e.caller().Configured() {
		return ledger
	}
	system, user, err := e.prompts.Render(ctx, prompt.PromptLedgerUpdateV1, map[string]any{
		"ledger":      ledgerBlock(ledger),
		"page_number": pageNumber,
		"page_text":   text,
	})
	if err != nil {
		logger.Warn(ctx, "render ledger prompt failed", "error", err)
		return ledger
	}
	update, err := structured.CallJSON(ctx, e.client, ledgerUpdateSchema, structured.Options{
		Step:        entity.CostStepLedgerUpdate,
		PageNumber:  llmcall.PageRef(pageNumber),
		System:      system,
		User:        user,
		Temperature: port.Float32(0),
		MaxTokens:   800,
		Retries:     e.retries,
	})
	if err != nil {
		logger.Warn(ctx, "ledger update skipped", "page", pageNumber, "error", err)
		return ledger
	}
	return MergeLedger(ledger, *update, e.cfg.FactsCap, e.cfg.ThreadsCap)
}

type rewriteResult struct {
	Pages []string `json:"pages"`
}

func rewriteSchema(pageCount int) structured.Schema[rewriteResult] {
	return structured.Schema[rewriteResult]{
		Name:        "repetition_rewrite",
		Description: fmt.Sprintf("{pages:string[%d]}", pageCount),
		JSONSchema:  structured.Object(map[string]any{"pages": structured.StringArray()}),
		Validate: func(r *rewriteResult) []string {
			var is structured.Issues
			if len(r.Pages) != pageCount {
				is.Addf("pages must contain exactly %d entries, got %d", pageCount, len(r.Pages))
			}
			for i, p := range r.Pages {
				is.Require(fmt.Sprintf("pages[%d]", i), p)
			}
			return is
		},
	}
}

// rewriteRepetition 整篇去重改写一次，返回页数不变的新页面
func (e *Engine) rewriteRepetition(ctx context.Context, pages []string, report RepetitionReport) ([]string, error) {
	if !e.caller().Configured() {
		return nil, port.ErrNotConfigured
	}
	var b strings.Builder
	for i, p := range pages {
		fmt.Fprintf(&b, "Page %d:\n%s\n\n", i+1, p)
	}
	system, user, err := e.prompts.Render(ctx, prompt.PromptRepetitionRewriteV1, map[string]any{
		"problems":   node.BulletList(report.Problems(e.thresholds), "- repetition detected"),
		"page_count": len(pages),
		"pages":      strings.TrimSpace(b.String()),
	})
	if err != nil {
		return nil, err
	}
	out, err := structured.CallJSON(ctx, e.client, rewriteSchema(len(pages)), structured.Options{
		Step:      entity.CostStepRepetitionRewrite,
		System:    system,
		User:      user,
		MaxTokens: countPages(pages)*3 + 1000,
		Retries:   e.retries,
	})
	if err != nil {
		return nil, err
	}
	rewritten := make([]string, len(out.Pages))
	for i, p := range out.Pages {
		rewritten[i] = strings.TrimSpace(p)
	}
	return rewritten, nil
}

func heroName(b *entity.StoryBible) string {
	if len(b.Characters) > 0 {
		return b.Characters[0].Name
	}
	return ""
}

func joinPages(pages []string) string {
	return strings.Join(pages, "\n\n")
}

func bibleBlock(b *entity.StoryBible) string {
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return b.Title
	}
	return string(raw)
}

func ledgerBlock(l entity.ContinuityLedger) string {
	return "Established facts:\n" + node.BulletList(l.EstablishedFacts, "- none yet") +
		"\nOpen threads:\n" + node.BulletList(l.OpenThreads, "- none")
}

func previousBlock(pages []string) string {
	if len(pages) == 0 {
		return "(this is the first page)"
	}
	start := len(pages) - 2
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for i := start; i < len(pages); i++ {
		fmt.Fprintf(&b, "Page %d:\n%s\n\n", i+1, pages[i])
	}
	return strings.TrimSpace(b.String())
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
