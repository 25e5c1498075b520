package illustration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"bedtime-story-api/internal/application/story/cost"
	"bedtime-story-api/internal/application/story/identity"
	"bedtime-story-api/internal/application/story/pagination"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/logger"
	"bedtime-story-api/pkg/metrics"
)

var (
	// ErrStoryNotFound 故事不存在
	ErrStoryNotFound = errors.New("illustration: story not found")
	// ErrPageNotFound 页面不存在
	ErrPageNotFound = errors.New("illustration: page not found")
	// ErrRunInProgress 同一故事已有插画任务在执行
	ErrRunInProgress = errors.New("illustration: run already in progress")
)

// Config 编排参数
type Config struct {
	BatchSize     int
	MaxAttempts   int
	BackoffBase   time.Duration
	LeaseTTL      time.Duration
	StyleCacheTTL time.Duration
	GenerateCover bool
	ImageSize     string
	ImageQuality  string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 250 * time.Millisecond
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 10 * time.Minute
	}
	if c.StyleCacheTTL <= 0 {
		c.StyleCacheTTL = 24 * time.Hour
	}
	return c
}

// StartResult 启动结果，started=false 表示已有任务在执行
type StartResult struct {
	Started bool   `json:"started"`
	RunID   string `json:"run_id,omitempty"`
}

// LeaseKey 故事插画租约键
func LeaseKey(storyID string) string {
	return "lease:illustration:" + storyID
}

// Orchestrator 插画任务编排器
type Orchestrator struct {
	stories repository.StoryRepository
	pages   repository.StoryPageRepository
	runs    repository.IllustrationRunRepository

	resolver *identity.Resolver
	scenes   *SceneExtractor
	images   port.ImageGenerator
	blobs    port.BlobStore
	lease    port.Lease
	styles   port.JSONCache
	meter    *cost.Meter

	dispatcher port.Dispatcher
	cfg        Config
}

// NewOrchestrator 创建编排器；styles 可为 nil，此时每次重新推导风格
func NewOrchestrator(
	stories repository.StoryRepository,
	pages repository.StoryPageRepository,
	runs repository.IllustrationRunRepository,
	resolver *identity.Resolver,
	scenes *SceneExtractor,
	images port.ImageGenerator,
	blobs port.BlobStore,
	lease port.Lease,
	styles port.JSONCache,
	meter *cost.Meter,
	cfg Config,
) *Orchestrator {
	if meter == nil {
		meter = cost.NewMeter(nil, nil)
	}
	return &Orchestrator{
		stories:  stories,
		pages:    pages,
		runs:     runs,
		resolver: resolver,
		scenes:   scenes,
		images:   images,
		blobs:    blobs,
		lease:    lease,
		styles:   styles,
		meter:    meter,
		cfg:      cfg.withDefaults(),
	}
}

// SetDispatcher 设置任务派发器
func (o *Orchestrator) SetDispatcher(d port.Dispatcher) {
	o.dispatcher = d
}

// StartStoryIllustrationGeneration 获取租约并派发任务，租约被占用时直接返回 started=false
func (o *Orchestrator) StartStoryIllustrationGeneration(ctx context.Context, storyID string) (*StartResult, error) {
	story, err := o.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("load story: %w", err)
	}
	if story == nil {
		return nil, ErrStoryNotFound
	}
	if o.dispatcher == nil {
		return nil, errors.New("illustration: dispatcher not set")
	}

	key := LeaseKey(storyID)
	token, ok, err := o.lease.Acquire(ctx, key, o.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		metrics.IllustrationRunsTotal.WithLabelValues("skipped").Inc()
		logger.Info(ctx, "illustration run already in progress", "story_id", storyID)
		return &StartResult{Started: false}, nil
	}

	run := entity.NewIllustrationRun(storyID)
	if err := o.runs.Create(ctx, run); err != nil {
		o.releaseLease(ctx, key, token)
		return nil, fmt.Errorf("create illustration run: %w", err)
	}

	job := port.IllustrationJob{StoryID: storyID, RunID: run.ID, LeaseToken: token}
	if err := o.dispatcher.Dispatch(ctx, job); err != nil {
		run.Fail(err.Error())
		if uerr := o.runs.Update(ctx, run); uerr != nil {
			logger.Warn(ctx, "failed to mark run failed", "run_id", run.ID, "error", uerr)
		}
		o.releaseLease(ctx, key, token)
		return nil, fmt.Errorf("dispatch illustration run: %w", err)
	}

	metrics.IllustrationRunsTotal.WithLabelValues("started").Inc()
	logger.Info(ctx, "illustration run dispatched", "story_id", storyID, "run_id", run.ID)
	return &StartResult{Started: true, RunID: run.ID}, nil
}

// runContext 单次任务内共享的只读状态
type runContext struct {
	story    *entity.Story
	meter    *cost.Meter
	resolver *identity.Resolver
	scenes   *SceneExtractor
	style    StyleBible
	cast     map[string]CharacterSheet
}

// sheetsFor 返回场景中出现角色的外观，按名字排序
func (rc *runContext) sheetsFor(names []string) []CharacterSheet {
	var out []CharacterSheet
	for _, n := range names {
		if s, ok := rc.cast[n]; ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (rc *runContext) allSheets() []CharacterSheet {
	names := make([]string, 0, len(rc.cast))
	for n := range rc.cast {
		names = append(names, n)
	}
	return rc.sheetsFor(names)
}

// Run 执行插画任务，结束时释放租约
// 消息重投时 job.LeaseToken 可能已失效，此时重新获取；被其他任务持有则跳过
func (o *Orchestrator) Run(ctx context.Context, job port.IllustrationJob) error {
	key := LeaseKey(job.StoryID)
	token, err := o.holdLease(ctx, key, job.LeaseToken)
	if err != nil {
		return err
	}
	if token == "" {
		logger.Info(ctx, "illustration lease held by another run, skipping", "story_id", job.StoryID, "run_id", job.RunID)
		metrics.IllustrationRunsTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	defer o.releaseLease(ctx, key, token)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go o.keepLease(runCtx, key, token)

	ctx = logger.WithStory(runCtx, job.StoryID)
	run := o.loadRun(ctx, job)

	story, err := o.stories.GetByID(ctx, job.StoryID)
	if err == nil && story == nil {
		err = ErrStoryNotFound
	}
	if err != nil {
		o.failRun(ctx, run, err)
		return err
	}

	pages, err := o.ensurePages(ctx, story)
	if err != nil {
		o.failRun(ctx, run, err)
		return err
	}

	var todo []*entity.StoryPage
	for _, p := range pages {
		// 持有租约时残留的 generating 页面来自崩溃的任务
		if p.NeedsImage() || p.ImageStatus == entity.ImageStatusGenerating {
			todo = append(todo, p)
		}
	}
	run.Start(len(todo))
	o.saveRun(ctx, run)

	rc := o.prepare(ctx, story)

	coverReady := story.CoverSource == entity.CoverSourceCall
	if o.cfg.GenerateCover && !coverReady {
		if err := o.generateCover(ctx, rc); err != nil {
			logger.Warn(ctx, "cover generation failed, will use first page", "error", err)
		} else {
			coverReady = true
		}
	}

	ready, failed := o.illustrateBatches(ctx, rc, todo)

	if !coverReady {
		coverReady = o.syncCoverFromFirstPage(ctx, story)
	}

	run.Complete(ready, failed, coverReady)
	o.saveRun(ctx, run)
	metrics.IllustrationRunsTotal.WithLabelValues("completed").Inc()

	if failed == 0 {
		if err := o.stories.UpdateStatus(ctx, story.ID, entity.StoryStatusIllustrated); err != nil {
			logger.Warn(ctx, "failed to update story status", "error", err)
		}
	}
	logger.Info(ctx, "illustration run completed",
		"run_id", run.ID, "pages_ready", ready, "pages_failed", failed, "cover_ready", coverReady)
	return nil
}

// RegeneratePage 同步重新生成单页插画；页面生成失败时返回失败状态的页面而非错误
func (o *Orchestrator) RegeneratePage(ctx context.Context, storyID string, pageIndex int) (*entity.StoryPage, error) {
	story, err := o.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("load story: %w", err)
	}
	if story == nil {
		return nil, ErrStoryNotFound
	}

	key := LeaseKey(storyID)
	token, ok, err := o.lease.Acquire(ctx, key, o.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer o.releaseLease(ctx, key, token)

	ctx = logger.WithStory(ctx, storyID)
	if _, err := o.ensurePages(ctx, story); err != nil {
		return nil, err
	}
	page, err := o.pages.GetByIndex(ctx, storyID, pageIndex)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	if page == nil {
		return nil, ErrPageNotFound
	}

	rc := o.prepare(ctx, story)
	if err := o.illustratePage(ctx, rc, page); err != nil {
		logger.Warn(ctx, "page regeneration failed", "page_index", pageIndex, "error", err)
		return page, nil
	}
	if pageIndex == 0 && story.CoverSource != entity.CoverSourceCall {
		o.syncCoverFromFirstPage(ctx, story)
	}
	return page, nil
}

func (o *Orchestrator) loadRun(ctx context.Context, job port.IllustrationJob) *entity.IllustrationRun {
	if job.RunID != "" {
		run, err := o.runs.GetByID(ctx, job.RunID)
		if err == nil && run != nil {
			return run
		}
		if err != nil {
			logger.Warn(ctx, "failed to load illustration run", "run_id", job.RunID, "error", err)
		}
	}
	run := entity.NewIllustrationRun(job.StoryID)
	if err := o.runs.Create(ctx, run); err != nil {
		logger.Warn(ctx, "failed to create illustration run", "error", err)
	}
	return run
}

func (o *Orchestrator) saveRun(ctx context.Context, run *entity.IllustrationRun) {
	if run.ID == "" {
		return
	}
	if err := o.runs.Update(ctx, run); err != nil {
		logger.Warn(ctx, "failed to save illustration run", "run_id", run.ID, "error", err)
	}
}

func (o *Orchestrator) failRun(ctx context.Context, run *entity.IllustrationRun, err error) {
	run.Fail(err.Error())
	o.saveRun(ctx, run)
	metrics.IllustrationRunsTotal.WithLabelValues("failed").Inc()
	logger.Error(ctx, "illustration run failed", err, "run_id", run.ID)
}

// ensurePages 首次插画时分页落库，并发插入由唯一约束去重后重新读取
func (o *Orchestrator) ensurePages(ctx context.Context, story *entity.Story) ([]*entity.StoryPage, error) {
	pages, err := o.pages.ListByStory(ctx, story.ID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	if len(pages) > 0 {
		return pages, nil
	}

	texts := pagination.BuildStoryPageTexts(story.StoryText, story.LengthMinutes)
	if len(texts) == 0 {
		return nil, errors.New("illustration: story has no text to paginate")
	}
	rows := make([]*entity.StoryPage, 0, len(texts))
	for _, t := range texts {
		rows = append(rows, &entity.StoryPage{
			StoryID:     story.ID,
			PageIndex:   t.PageIndex,
			Text:        t.Text,
			ImageStatus: entity.ImageStatusPending,
		})
	}
	if err := o.pages.CreateIgnoreDuplicates(ctx, rows); err != nil {
		return nil, fmt.Errorf("create pages: %w", err)
	}
	pages, err = o.pages.ListByStory(ctx, story.ID)
	if err != nil {
		return nil, fmt.Errorf("reload pages: %w", err)
	}
	logger.Info(ctx, "story paginated", "pages", len(pages))
	return pages, nil
}

// prepare 解析风格与全部角色外观，单个角色失败时以名字占位
func (o *Orchestrator) prepare(ctx context.Context, story *entity.Story) *runContext {
	meter := o.meter.ForStory(story.ID)
	rc := &runContext{
		story: story,
		meter: meter,
		style: o.styleBible(ctx, story),
		cast:  map[string]CharacterSheet{},
	}
	if o.scenes != nil {
		rc.scenes = o.scenes.WithMeter(meter)
	} else {
		rc.scenes = NewSceneExtractor(nil, nil, o.pages)
	}
	if o.resolver != nil {
		rc.resolver = o.resolver.WithMeter(meter)
	}
	if story.Bible == nil {
		return rc
	}

	sc := identity.StoryContext{Setting: story.Setting, Season: story.Season, Tone: story.Tone}
	for _, c := range story.Bible.Characters {
		sheet := CharacterSheet{Name: c.Name}
		if rc.resolver != nil {
			o.resolveSheet(ctx, rc, c, sc, &sheet)
		}
		rc.cast[c.Name] = sheet
	}
	return rc
}

func (o *Orchestrator) resolveSheet(ctx context.Context, rc *runContext, c entity.BibleCharacter, sc identity.StoryContext, sheet *CharacterSheet) {
	profile, err := rc.resolver.ProfileFor(ctx, rc.story, c)
	if err != nil {
		logger.Warn(ctx, "failed to load character profile", "character", c.Name, "error", err)
		return
	}
	ident, err := rc.resolver.ResolveIdentity(ctx, profile)
	if err != nil {
		logger.Warn(ctx, "failed to resolve identity", "character", c.Name, "error", err)
		return
	}
	sheet.Identity = ident

	outfit, err := rc.resolver.ResolveOutfit(ctx, rc.story.ID, profile, ident, sc, true)
	if err != nil {
		logger.Warn(ctx, "failed to resolve outfit", "character", c.Name, "error", err)
	}
	sheet.Outfit = outfit

	withPortrait, err := rc.resolver.EnsurePortrait(ctx, ident)
	if err != nil {
		if !errors.Is(err, port.ErrNotConfigured) {
			logger.Warn(ctx, "portrait unavailable", "character", c.Name, "error", err)
		}
		return
	}
	sheet.Identity = withPortrait
	if o.blobs != nil && withPortrait.PortraitPath != "" {
		data, err := o.blobs.Get(ctx, withPortrait.PortraitPath)
		if err != nil {
			logger.Warn(ctx, "failed to load portrait bytes", "character", c.Name, "error", err)
			return
		}
		sheet.Portrait = data
	}
}

func (o *Orchestrator) styleBible(ctx context.Context, story *entity.Story) StyleBible {
	if o.styles == nil {
		return BuildStyleBible(story)
	}
	raw, err := o.styles.GetOrLoadSafe(ctx, "style:"+story.ID, o.cfg.StyleCacheTTL, func() (interface{}, error) {
		return BuildStyleBible(story), nil
	})
	if err != nil {
		logger.Warn(ctx, "style cache unavailable", "error", err)
		return BuildStyleBible(story)
	}
	var s StyleBible
	if err := json.Unmarshal(raw, &s); err != nil || s.Medium == "" {
		return BuildStyleBible(story)
	}
	return s
}

func (o *Orchestrator) generateCover(ctx context.Context, rc *runContext) error {
	sheets := rc.allSheets()
	names := make([]string, 0, len(sheets))
	for _, s := range sheets {
		names = append(names, s.Name)
	}
	promptText := AssemblePrompt(PromptParts{
		Style:      rc.style,
		Characters: sheets,
		Scene:      CoverScene(rc.story, names),
	})
	refs, _ := references(sheets)

	res, _, _, err := o.generateImage(ctx, rc.meter, entity.CostStepCoverImage, nil, port.ImageRequest{
		Prompt:     promptText,
		Size:       o.cfg.ImageSize,
		Quality:    o.cfg.ImageQuality,
		References: refs,
	})
	if err != nil {
		return err
	}

	path := fmt.Sprintf("stories/%s/cover.%s", rc.story.ID, identity.ImageExt(res.MIMEType))
	url, err := o.blobs.Put(ctx, path, res.Data, contentType(res.MIMEType))
	if err != nil {
		return fmt.Errorf("upload cover: %w", err)
	}
	if err := o.stories.UpdateCover(ctx, rc.story.ID, path, url, entity.CoverSourceCall); err != nil {
		return fmt.Errorf("save cover: %w", err)
	}
	rc.story.CoverImagePath, rc.story.CoverImageURL, rc.story.CoverSource = path, url, entity.CoverSourceCall
	return nil
}

// illustrateBatches 批次间串行、批次内并行；单页失败不影响其他页
func (o *Orchestrator) illustrateBatches(ctx context.Context, rc *runContext, todo []*entity.StoryPage) (ready, failed int) {
	var mu sync.Mutex
	for start := 0; start < len(todo); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(todo) {
			end = len(todo)
		}

		var g errgroup.Group
		for _, page := range todo[start:end] {
			page := page
			g.Go(func() error {
				err := o.illustratePage(ctx, rc, page)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					logger.Warn(ctx, "page illustration failed", "page_index", page.PageIndex, "error", err)
				} else {
					ready++
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return ready, failed
}

func (o *Orchestrator) illustratePage(ctx context.Context, rc *runContext, page *entity.StoryPage) error {
	page.MarkGenerating()
	if err := o.pages.UpdateStatus(ctx, page.ID, entity.ImageStatusGenerating, ""); err != nil {
		logger.Warn(ctx, "failed to mark page generating", "page_index", page.PageIndex, "error", err)
	}

	scene := rc.scenes.ExtractSceneFromPageText(ctx, rc.story, page)
	sheets := rc.sheetsFor(scene.Characters)
	promptText := AssemblePrompt(PromptParts{Style: rc.style, Characters: sheets, Scene: scene})
	refs, refIDs := references(sheets)

	pageNumber := page.PageNumber()
	res, spent, attempts, err := o.generateImage(ctx, rc.meter, entity.CostStepPageImage, &pageNumber, port.ImageRequest{
		Prompt:     promptText,
		Size:       o.cfg.ImageSize,
		Quality:    o.cfg.ImageQuality,
		References: refs,
	})
	page.Attempts += attempts
	page.ImagePrompt = promptText
	if err == nil {
		path := fmt.Sprintf("stories/%s/pages/%03d.%s", rc.story.ID, page.PageIndex, identity.ImageExt(res.MIMEType))
		var url string
		if url, err = o.blobs.Put(ctx, path, res.Data, contentType(res.MIMEType)); err == nil {
			page.MarkReady(path, url, promptText, refIDs, spent)
		} else {
			err = fmt.Errorf("upload image: %w", err)
		}
	}
	if err != nil {
		page.CostUSD += spent
		page.MarkFailed(err.Error())
	}
	metrics.IllustrationPagesTotal.WithLabelValues(string(page.ImageStatus)).Inc()

	if uerr := o.pages.Update(ctx, page); uerr != nil {
		logger.Warn(ctx, "failed to save page", "page_index", page.PageIndex, "error", uerr)
		if err == nil {
			err = fmt.Errorf("save page: %w", uerr)
		}
	}
	return err
}

// generateImage 最多 MaxAttempts 次尝试，仅瞬时错误退避重试；每次调用都计量
func (o *Orchestrator) generateImage(ctx context.Context, meter *cost.Meter, step entity.CostStep, pageNumber *int, req port.ImageRequest) (*port.ImageResult, float64, int, error) {
	if o.images == nil || o.blobs == nil {
		return nil, 0, 0, port.ErrNotConfigured
	}

	var (
		res      *port.ImageResult
		spent    float64
		attempts int
	)
	op := func() error {
		attempts++
		start := time.Now()
		r, err := o.images.Generate(ctx, req)
		entry := cost.Entry{Step: step, PageNumber: pageNumber, Duration: time.Since(start)}
		if r != nil {
			entry.Provider, entry.Model, entry.Usage, entry.ResponseID = r.Provider, r.Model, r.Usage, r.ResponseID
		}
		row := meter.Record(ctx, entry)
		spent += row.CostUSD
		if err != nil {
			if port.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(r.Data) == 0 {
			return backoff.Permanent(errors.New("image provider returned no data"))
		}
		res = r
		return nil
	}

	err := backoff.RetryNotify(op, o.newBackOff(ctx), func(err error, wait time.Duration) {
		logger.Warn(ctx, "image generation failed, retrying", "step", step, "attempt", attempts, "wait", wait, "error", err)
	})
	if err != nil {
		return nil, spent, attempts, err
	}
	return res, spent, attempts, nil
}

// newBackOff base × 2^(n-1)，不加抖动
func (o *Orchestrator) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = o.cfg.BackoffBase << uint(o.cfg.MaxAttempts)
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.cfg.MaxAttempts-1)), ctx)
}

// syncCoverFromFirstPage 没有独立封面时以第一页插画作为封面
func (o *Orchestrator) syncCoverFromFirstPage(ctx context.Context, story *entity.Story) bool {
	first, err := o.pages.GetByIndex(ctx, story.ID, 0)
	if err != nil || first == nil || first.ImageStatus != entity.ImageStatusReady {
		return false
	}
	if err := o.stories.UpdateCover(ctx, story.ID, first.ImagePath, first.ImageURL, entity.CoverSourcePage0); err != nil {
		logger.Warn(ctx, "failed to sync cover from first page", "error", err)
		return false
	}
	story.CoverImagePath, story.CoverImageURL, story.CoverSource = first.ImagePath, first.ImageURL, entity.CoverSourcePage0
	return true
}

// keepLease 每 ttl/3 续约一次直到 ctx 结束
func (o *Orchestrator) keepLease(ctx context.Context, key, token string) {
	ticker := time.NewTicker(o.cfg.LeaseTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := o.lease.Renew(ctx, key, token, o.cfg.LeaseTTL)
			if err != nil {
				logger.Warn(ctx, "lease renew failed", "key", key, "error", err)
			} else if !ok {
				logger.Warn(ctx, "lease lost while running", "key", key)
			}
		}
	}
}

func (o *Orchestrator) holdLease(ctx context.Context, key, token string) (string, error) {
	if token != "" {
		ok, err := o.lease.Renew(ctx, key, token, o.cfg.LeaseTTL)
		if err != nil {
			return "", fmt.Errorf("renew lease: %w", err)
		}
		if ok {
			return token, nil
		}
	}
	fresh, ok, err := o.lease.Acquire(ctx, key, o.cfg.LeaseTTL)
	if err != nil {
		return "", fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return "", nil
	}
	return fresh, nil
}

func (o *Orchestrator) releaseLease(ctx context.Context, key, token string) {
	if err := o.lease.Release(context.WithoutCancel(ctx), key, token); err != nil {
		logger.Warn(ctx, "lease release failed", "key", key, "error", err)
	}
}

func references(sheets []CharacterSheet) ([]port.ReferenceImage, []string) {
	refs := []port.ReferenceImage{}
	ids := []string{}
	for _, s := range sheets {
		if s.Identity == nil || !s.Identity.HasPortrait() {
			continue
		}
		refs = append(refs, port.ReferenceImage{ID: s.Identity.ID, URL: s.Identity.PortraitURL, Data: s.Portrait})
		ids = append(ids, s.Identity.ID)
	}
	return refs, ids
}

func contentType(mime string) string {
	if mime == "" {
		return "image/png"
	}
	return mime
}
