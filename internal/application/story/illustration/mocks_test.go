package illustration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/internal/workflow/port"
)

type memStories struct {
	mu   sync.Mutex
	rows map[string]*entity.Story
}

func newMemStories(stories ...*entity.Story) *memStories {
	m := &memStories{rows: map[string]*entity.Story{}}
	for _, s := range stories {
		m.rows[s.ID] = s
	}
	return m
}

func (m *memStories) Create(_ context.Context, s *entity.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memStories) GetByID(_ context.Context, id string) (*entity.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memStories) UpdateCover(_ context.Context, id, path, url string, source entity.CoverSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok {
		s.CoverImagePath, s.CoverImageURL, s.CoverSource = path, url, source
	}
	return nil
}

func (m *memStories) UpdateStatus(_ context.Context, id string, status entity.StoryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok {
		s.Status = status
	}
	return nil
}

func (m *memStories) get(id string) *entity.Story {
	s, _ := m.GetByID(context.Background(), id)
	return s
}

type memPages struct {
	mu     sync.Mutex
	rows   []*entity.StoryPage
	nextID int
	scenes int
}

func (m *memPages) ListByStory(_ context.Context, storyID string) ([]*entity.StoryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.StoryPage
	for _, r := range m.rows {
		if r.StoryID == storyID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageIndex < out[j].PageIndex })
	return out, nil
}

func (m *memPages) GetByIndex(_ context.Context, storyID string, pageIndex int) (*entity.StoryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.StoryID == storyID && r.PageIndex == pageIndex {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPages) CreateIgnoreDuplicates(_ context.Context, pages []*entity.StoryPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
outer:
	for _, p := range pages {
		for _, r := range m.rows {
			if r.StoryID == p.StoryID && r.PageIndex == p.PageIndex {
				continue outer
			}
		}
		m.nextID++
		cp := *p
		cp.ID = fmt.Sprintf("page-%d", m.nextID)
		m.rows = append(m.rows, &cp)
	}
	return nil
}

func (m *memPages) find(id string) *entity.StoryPage {
	for _, r := range m.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *memPages) Update(_ context.Context, page *entity.StoryPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.find(page.ID); r != nil {
		*r = *page
		return nil
	}
	return fmt.Errorf("page %s not found", page.ID)
}

func (m *memPages) UpdateStatus(_ context.Context, id string, status entity.ImageStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.find(id); r != nil {
		r.ImageStatus, r.ErrorMessage = status, errMsg
	}
	return nil
}

func (m *memPages) SaveScene(_ context.Context, id string, scene *entity.SceneDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes++
	if r := m.find(id); r != nil {
		r.Scene = scene
	}
	return nil
}

func (m *memPages) byIndex(storyID string, idx int) *entity.StoryPage {
	p, _ := m.GetByIndex(context.Background(), storyID, idx)
	return p
}

type memRuns struct {
	mu   sync.Mutex
	rows map[string]*entity.IllustrationRun
	seq  int
}

func newMemRuns() *memRuns {
	return &memRuns{rows: map[string]*entity.IllustrationRun{}}
}

func (m *memRuns) Create(_ context.Context, run *entity.IllustrationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	run.ID = fmt.Sprintf("run-%d", m.seq)
	cp := *run
	m.rows[run.ID] = &cp
	return nil
}

func (m *memRuns) Update(_ context.Context, run *entity.IllustrationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.rows[run.ID] = &cp
	return nil
}

func (m *memRuns) GetByID(_ context.Context, id string) (*entity.IllustrationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *memRuns) LatestByStory(_ context.Context, storyID string) (*entity.IllustrationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *entity.IllustrationRun
	for _, r := range m.rows {
		if r.StoryID == storyID && (latest == nil || r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memRuns) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memLease struct {
	mu     sync.Mutex
	tokens map[string]string
	seq    int
}

func newMemLease() *memLease {
	return &memLease{tokens: map[string]string{}}
}

func (l *memLease) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.tokens[key]; held {
		return "", false, nil
	}
	l.seq++
	token := fmt.Sprintf("token-%d", l.seq)
	l.tokens[key] = token
	return token, true, nil
}

func (l *memLease) Renew(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens[key] == token, nil
}

func (l *memLease) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tokens[key] == token {
		delete(l.tokens, key)
	}
	return nil
}

func (l *memLease) held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tokens[key]
	return ok
}

// scriptedImages 按提示词决定返回；fail 返回 nil 表示成功
type scriptedImages struct {
	mu      sync.Mutex
	prompts []string
	refs    [][]port.ReferenceImage
	fail    func(prompt string, attempt int) error
	seen    map[string]int

	// delay 让调用保持在途，便于观察并发度
	delay       time.Duration
	active      int
	peak        int
	finished    int
	doneAtStart []int
}

func (s *scriptedImages) Generate(_ context.Context, req port.ImageRequest) (*port.ImageResult, error) {
	s.mu.Lock()
	if s.seen == nil {
		s.seen = map[string]int{}
	}
	s.seen[req.Prompt]++
	attempt := s.seen[req.Prompt]
	s.prompts = append(s.prompts, req.Prompt)
	s.refs = append(s.refs, req.References)
	s.doneAtStart = append(s.doneAtStart, s.finished)
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.finished++
		s.mu.Unlock()
	}()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail != nil {
		if err := s.fail(req.Prompt, attempt); err != nil {
			return nil, err
		}
	}
	return &port.ImageResult{Data: []byte("png"), MIMEType: "image/png", Provider: "fake", Model: "gpt-image-1"}, nil
}

func (s *scriptedImages) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (b *memBlobs) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = map[string][]byte{}
	}
	b.data[path] = data
	return b.URL(path), nil
}

func (b *memBlobs) Get(_ context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.data[path]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("blob %s not found", path)
}

func (b *memBlobs) URL(path string) string {
	return "https://cdn.test/" + path
}

type memCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	loads int
}

func (c *memCache) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	if d, ok := c.data[key]; ok {
		return d, nil
	}
	c.loads++
	v, err := loader()
	if err != nil {
		return nil, err
	}
	d, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	c.data[key] = d
	return d, nil
}

type memBibles struct {
	mu   sync.Mutex
	rows []*entity.IdentityBible
}

func (m *memBibles) FindActive(_ context.Context, kind entity.ProfileKind, profileID, hash string) (*entity.IdentityBible, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProfileKind == kind && r.ProfileID == profileID && r.SourceHash == hash && r.IsActive() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBibles) MaxVersion(_ context.Context, kind entity.ProfileKind, profileID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	highest := 0
	for _, r := range m.rows {
		if r.ProfileKind == kind && r.ProfileID == profileID && r.Version > highest {
			highest = r.Version
		}
	}
	return highest, nil
}

func (m *memBibles) Create(_ context.Context, b *entity.IdentityBible) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProfileKind == b.ProfileKind && r.ProfileID == b.ProfileID && r.Version == b.Version {
			return repository.ErrDuplicate
		}
	}
	cp := *b
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memBibles) SupersedeOthers(_ context.Context, kind entity.ProfileKind, profileID, keepID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProfileKind == kind && r.ProfileID == profileID && r.ID != keepID {
			r.Status = entity.IdentityStatusSuperseded
		}
	}
	return nil
}

func (m *memBibles) SetPortrait(_ context.Context, id, path, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			if r.PortraitPath != "" {
				return false, nil
			}
			r.PortraitPath, r.PortraitURL = path, url
			return true, nil
		}
	}
	return false, nil
}

func (m *memBibles) GetByID(_ context.Context, id string) (*entity.IdentityBible, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

type memOutfits struct {
	mu      sync.Mutex
	rows    map[string]*entity.StoryCharacterOutfit
	upserts int
}

func (m *memOutfits) key(storyID string, kind entity.ProfileKind, id string) string {
	return storyID + "|" + string(kind) + "|" + id
}

func (m *memOutfits) Get(_ context.Context, storyID string, kind entity.ProfileKind, profileID string) (*entity.StoryCharacterOutfit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.rows[m.key(storyID, kind, profileID)]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (m *memOutfits) Upsert(_ context.Context, o *entity.StoryCharacterOutfit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]*entity.StoryCharacterOutfit{}
	}
	m.upserts++
	k := m.key(o.StoryID, o.ProfileKind, o.ProfileID)
	if cur, ok := m.rows[k]; ok && cur.OutfitLock {
		return nil
	}
	cp := *o
	m.rows[k] = &cp
	return nil
}

func (m *memOutfits) all() []*entity.StoryCharacterOutfit {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.StoryCharacterOutfit, 0, len(m.rows))
	for _, o := range m.rows {
		cp := *o
		out = append(out, &cp)
	}
	return out
}
