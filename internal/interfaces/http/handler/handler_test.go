package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime-story-api/internal/application/story"
	"bedtime-story-api/internal/application/story/illustration"
	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/domain/repository"
	"bedtime-story-api/internal/workflow/port"
)

type fakeGenerator struct {
	got *story.StoryGenerateInput
	out *story.StoryGenerateOutput
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, in *story.StoryGenerateInput) (*story.StoryGenerateOutput, error) {
	f.got = in
	return f.out, f.err
}

type fakeIllustrations struct {
	start *illustration.StartResult
	page  *entity.StoryPage
	err   error
}

func (f *fakeIllustrations) StartStoryIllustrationGeneration(context.Context, string) (*illustration.StartResult, error) {
	return f.start, f.err
}

func (f *fakeIllustrations) RegeneratePage(context.Context, string, int) (*entity.StoryPage, error) {
	return f.page, f.err
}

type fakeStories struct {
	repository.StoryRepository
	stories map[string]*entity.Story
}

func (f *fakeStories) GetByID(_ context.Context, id string) (*entity.Story, error) {
	return f.stories[id], nil
}

type fakePages struct {
	repository.StoryPageRepository
	pages []*entity.StoryPage
}

func (f *fakePages) ListByStory(context.Context, string) ([]*entity.StoryPage, error) {
	return f.pages, nil
}

type fakeRuns struct {
	repository.IllustrationRunRepository
	latest *entity.IllustrationRun
}

func (f *fakeRuns) LatestByStory(context.Context, string) (*entity.IllustrationRun, error) {
	return f.latest, nil
}

type fakeCosts struct {
	repository.GenerationCostRepository
	rows []*entity.GenerationCost
}

func (f *fakeCosts) ListByStory(_ context.Context, _ string, p repository.Pagination) (*repository.PagedResult[*entity.GenerationCost], error) {
	return repository.NewPagedResult(f.rows, int64(len(f.rows)), p), nil
}

func (f *fakeCosts) SumByStory(context.Context, string) (float64, error) {
	var total float64
	for _, r := range f.rows {
		total += r.CostUSD
	}
	return total, nil
}

func newTestEngine(sh *StoryHandler, ih *IllustrationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if sh != nil {
		r.POST("/v1/stories/generate", sh.Generate)
		r.GET("/v1/stories/:sid/pages", sh.GetPages)
		r.GET("/v1/stories/:sid/costs", sh.GetCosts)
	}
	if ih != nil {
		r.POST("/v1/stories/:sid/illustrations", ih.Start)
		r.POST("/v1/stories/:sid/pages/:index/regenerate", ih.Regenerate)
	}
	return r
}

func perform(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateReturnsCamelCaseBody(t *testing.T) {
	gen := &fakeGenerator{out: &story.StoryGenerateOutput{
		StoryID:    "s1",
		Title:      "The Moon Boat",
		StoryText:  "Once upon a time.",
		Pages:      []story.GeneratedPage{{PageNumber: 1, Text: "Once upon a time."}},
		Plan:       &entity.StoryPlan{},
		WordCount:  4,
		SceneCount: 1,
	}}
	r := newTestEngine(NewStoryHandler(gen, nil, nil, nil, nil), nil)

	w := perform(r, http.MethodPost, "/v1/stories/generate", map[string]any{
		"spark":         "adventure",
		"lengthMinutes": 5,
		"characters":    []map[string]any{{"name": "Mia", "profileKind": "kid", "profileId": "k1"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "The Moon Boat", body["title"])
	assert.Equal(t, "s1", body["storyId"])
	assert.EqualValues(t, 1, body["sceneCount"])
	assert.Contains(t, body, "storyBible")
	assert.Contains(t, body, "continuityLedger")
	assert.Equal(t, []any{}, body["warnings"])
	pages := body["pages"].([]any)
	require.Len(t, pages, 1)
	assert.EqualValues(t, 1, pages[0].(map[string]any)["page_number"])

	require.NotNil(t, gen.got)
	assert.Equal(t, 5, gen.got.LengthMinutes)
	require.Len(t, gen.got.Characters, 1)
	assert.Equal(t, entity.ProfileKindKid, gen.got.Characters[0].ProfileKind)
}

func TestGenerateMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: length", story.ErrInvalidInput), http.StatusBadRequest},
		{"not configured", port.ErrNotConfigured, http.StatusServiceUnavailable},
		{"transient", &port.ProviderError{Provider: "openai", StatusCode: 503}, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(NewStoryHandler(&fakeGenerator{err: tc.err}, nil, nil, nil, nil), nil)
			w := perform(r, http.MethodPost, "/v1/stories/generate", map[string]any{"lengthMinutes": 5})
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestGenerateRejectsMissingLength(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestEngine(NewStoryHandler(gen, nil, nil, nil, nil), nil)
	w := perform(r, http.MethodPost, "/v1/stories/generate", map[string]any{"spark": "calm"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, gen.got)
}

func TestGetPages(t *testing.T) {
	stories := &fakeStories{stories: map[string]*entity.Story{
		"s1": {ID: "s1", Status: entity.StoryStatusDraft},
	}}
	pages := &fakePages{pages: []*entity.StoryPage{
		{StoryID: "s1", PageIndex: 0, Text: "a", ImageStatus: entity.ImageStatusReady, ImageURL: "https://cdn/p0.png"},
		{StoryID: "s1", PageIndex: 1, Text: "b", ImageStatus: entity.ImageStatusFailed, ErrorMessage: "rate limited"},
	}}
	runs := &fakeRuns{latest: &entity.IllustrationRun{ID: "r1", Status: entity.RunStatusRunning}}
	r := newTestEngine(NewStoryHandler(nil, stories, pages, runs, nil), nil)

	w := perform(r, http.MethodGet, "/v1/stories/s1/pages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		StoryID   string `json:"storyId"`
		LatestRun struct {
			ID string `json:"id"`
		} `json:"latestRun"`
		Pages []struct {
			PageNumber   int    `json:"pageNumber"`
			ImageStatus  string `json:"imageStatus"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "s1", body.StoryID)
	assert.Equal(t, "r1", body.LatestRun.ID)
	require.Len(t, body.Pages, 2)
	assert.Equal(t, 2, body.Pages[1].PageNumber)
	assert.Equal(t, "failed", body.Pages[1].ImageStatus)
	assert.Equal(t, "rate limited", body.Pages[1].ErrorMessage)

	w = perform(r, http.MethodGet, "/v1/stories/missing/pages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCosts(t *testing.T) {
	costs := &fakeCosts{rows: []*entity.GenerationCost{
		{Step: entity.CostStepPlan, Provider: "openai", Model: "gpt-4o-mini", CostUSD: 0.25},
		{Step: entity.CostStepPageImage, Provider: "openai", Model: "gpt-image-1", CostUSD: 0.5},
	}}
	r := newTestEngine(NewStoryHandler(nil, nil, nil, nil, costs), nil)

	w := perform(r, http.MethodGet, "/v1/stories/s1/costs?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		TotalUSD float64 `json:"totalUsd"`
		Items    []any   `json:"items"`
		Meta     struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, 0.75, body.TotalUSD, 1e-9)
	assert.Len(t, body.Items, 2)
	assert.Equal(t, 2, body.Meta.Total)
}

func TestStartIllustrationAccepted(t *testing.T) {
	svc := &fakeIllustrations{start: &illustration.StartResult{Started: true, RunID: "r1"}}
	r := newTestEngine(nil, NewIllustrationHandler(svc))

	w := perform(r, http.MethodPost, "/v1/stories/s1/illustrations", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"started":true,"run_id":"r1"}`, w.Body.String())
}

func TestStartIllustrationErrors(t *testing.T) {
	r := newTestEngine(nil, NewIllustrationHandler(&fakeIllustrations{err: illustration.ErrStoryNotFound}))
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodPost, "/v1/stories/s1/illustrations", nil).Code)

	r = newTestEngine(nil, NewIllustrationHandler(&fakeIllustrations{err: port.ErrNotConfigured}))
	assert.Equal(t, http.StatusServiceUnavailable, perform(r, http.MethodPost, "/v1/stories/s1/illustrations", nil).Code)
}

func TestRegeneratePage(t *testing.T) {
	page := &entity.StoryPage{PageIndex: 2, ImageStatus: entity.ImageStatusReady, ImageURL: "https://cdn/p2.png", Attempts: 2}
	r := newTestEngine(nil, NewIllustrationHandler(&fakeIllustrations{page: page}))

	w := perform(r, http.MethodPost, "/v1/stories/s1/pages/2/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body["pageNumber"])
	assert.Equal(t, "ready", body["imageStatus"])

	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/v1/stories/s1/pages/-1/regenerate", nil).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/v1/stories/s1/pages/x/regenerate", nil).Code)

	r = newTestEngine(nil, NewIllustrationHandler(&fakeIllustrations{err: illustration.ErrRunInProgress}))
	assert.Equal(t, http.StatusConflict, perform(r, http.MethodPost, "/v1/stories/s1/pages/0/regenerate", nil).Code)

	r = newTestEngine(nil, NewIllustrationHandler(&fakeIllustrations{err: illustration.ErrPageNotFound}))
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodPost, "/v1/stories/s1/pages/9/regenerate", nil).Code)
}
