package identity

import (
	"context"
	"sync"

	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/internal/domain/service"
	"bedtime-story-api/internal/workflow/port"
)

type memBibles struct {
	mu   sync.Mutex
	rows []*entity.IdentityBible
	// beforeCreate 在唯一性检查前执行，用于模拟并发写入
	beforeCreate func(b *entity.IdentityBible)
	creates      int
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
	if m.beforeCreate != nil {
		m.beforeCreate(b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	for _, r := range m.rows {
		if r.ProfileKind == b.ProfileKind && r.ProfileID == b.ProfileID && r.Version == b.Version {
			return repository.ErrDuplicate
		}
	}
	cp := *b
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memBibles) insert(b *entity.IdentityBible) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.rows = append(m.rows, &cp)
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

func (m *memBibles) byID(id string) *entity.IdentityBible {
	b, _ := m.GetByID(context.Background(), id)
	return b
}

type memOutfits struct {
	mu   sync.Mutex
	rows map[string]*entity.StoryCharacterOutfit
}

func newMemOutfits() *memOutfits {
	return &memOutfits{rows: map[string]*entity.StoryCharacterOutfit{}}
}

func outfitKey(storyID string, kind entity.ProfileKind, id string) string {
	return storyID + "|" + string(kind) + "|" + id
}

func (m *memOutfits) Get(_ context.Context, storyID string, kind entity.ProfileKind, profileID string) (*entity.StoryCharacterOutfit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.rows[outfitKey(storyID, kind, profileID)]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (m *memOutfits) Upsert(_ context.Context, o *entity.StoryCharacterOutfit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := outfitKey(o.StoryID, o.ProfileKind, o.ProfileID)
	if cur, ok := m.rows[key]; ok && cur.OutfitLock {
		return nil
	}
	cp := *o
	m.rows[key] = &cp
	return nil
}

type memProfiles struct {
	rows map[string]*entity.CharacterProfile
}

func (m *memProfiles) Get(_ context.Context, kind entity.ProfileKind, id string) (*entity.CharacterProfile, error) {
	if p, ok := m.rows[string(kind)+"/"+id]; ok {
		return p, nil
	}
	return nil, nil
}

type countingImages struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (c *countingImages) Generate(_ context.Context, req port.ImageRequest) (*port.ImageResult, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return &port.ImageResult{Data: []byte("png:" + req.Prompt), MIMEType: "image/png", Provider: "fake", Model: "gpt-image-1"}, nil
}

func (c *countingImages) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
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
	return b.data[path], nil
}

func (b *memBlobs) URL(path string) string {
	return "https://cdn.test/" + path
}

// stepGen 按步骤返回回复并记录请求
type stepGen struct {
	mu       sync.Mutex
	respond  func(step string, n int) string
	counts   map[string]int
	requests []port.TextRequest
}

func (g *stepGen) Generate(ctx context.Context, req port.TextRequest) (*port.TextResponse, error) {
	step := service.StepFromContext(ctx)
	g.mu.Lock()
	if g.counts == nil {
		g.counts = map[string]int{}
	}
	g.counts[step]++
	n := g.counts[step]
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return &port.TextResponse{Text: g.respond(step, n), Provider: "fake", Model: "gpt-4.1-mini"}, nil
}

func (g *stepGen) count(step string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[step]
}

// countingTx 直接执行回调，只记录调用次数
type countingTx struct {
	calls int
}

func (t *countingTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}
