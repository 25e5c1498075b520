package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime-story-api/internal/config"
	"bedtime-story-api/internal/workflow/port"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestOpenAIClient_GenerationsWithoutReferences(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a fox under the moon", body["prompt"])
		assert.Equal(t, "1024x1024", body["size"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 42,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(pngHeader)}},
			"usage":   map[string]any{"input_tokens": 10, "output_tokens": 20, "total_tokens": 30},
		})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.ImageProviderConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := c.Generate(context.Background(), port.ImageRequest{Prompt: "a fox under the moon"})
	require.NoError(t, err)
	assert.Equal(t, "/images/generations", path)
	assert.Equal(t, pngHeader, res.Data)
	assert.Equal(t, "image/png", res.MIMEType)
	assert.Equal(t, 30, res.Usage.TotalTokens)
	assert.Equal(t, "img_42", res.ResponseID)
}

func TestOpenAIClient_EditsWithReferences(t *testing.T) {
	var files int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/edits", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files = len(r.MultipartForm.File["image[]"])
		assert.Equal(t, "hello", r.FormValue("prompt"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(pngHeader)}},
		})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.ImageProviderConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), port.ImageRequest{
		Prompt: "hello",
		References: []port.ReferenceImage{
			{ID: "a", Data: pngHeader},
			{ID: "b", Data: pngHeader},
			{ID: "no-bytes", URL: "https://cdn.test/x.png"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, files)
}

func TestOpenAIClient_ErrorStatusIsProviderError(t *testing.T) {
	cases := map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusBadRequest:          false,
		http.StatusGatewayTimeout:      false,
	}
	for status, transient := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
		}))
		c, err := NewOpenAIClient(config.ImageProviderConfig{APIKey: "k", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), port.ImageRequest{Prompt: "p"})
		srv.Close()

		var pe *port.ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, status, pe.StatusCode)
		assert.Equal(t, "nope", pe.Message)
		assert.Equal(t, transient, port.IsTransient(err), "status %d", status)
	}
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(config.ImageProviderConfig{})
	assert.ErrorIs(t, err, port.ErrNotConfigured)
}

type captureGenerator struct {
	last port.ImageRequest
}

func (c *captureGenerator) Generate(_ context.Context, req port.ImageRequest) (*port.ImageResult, error) {
	c.last = req
	return &port.ImageResult{Data: pngHeader, Model: "m"}, nil
}

func TestReferenceCache_FetchesOnceAndReuses(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	next := &captureGenerator{}
	c := NewReferenceCache(next, 0)
	req := port.ImageRequest{Prompt: "p", References: []port.ReferenceImage{{ID: "id-1", URL: srv.URL + "/portrait.png"}}}

	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, next.last.References, 1)
		assert.Equal(t, pngHeader, next.last.References[0].Data)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, req.References[0].Data, "caller's request is not mutated")
}

func TestRateLimited_PassesThrough(t *testing.T) {
	next := &captureGenerator{}
	r := NewRateLimited(next, "openai", 0, 0)

	res, err := r.Generate(context.Background(), port.ImageRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "m", res.Model)
	assert.Equal(t, "x", next.last.Prompt)
}

func TestRateLimited_HonoursContext(t *testing.T) {
	r := NewRateLimited(&captureGenerator{}, "openai", 1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := r.Generate(ctx, port.ImageRequest{})
	require.NoError(t, err)

	cancel()
	_, err = r.Generate(ctx, port.ImageRequest{})
	assert.Error(t, err)
}

func TestNew_NoProvider(t *testing.T) {
	g, err := New(context.Background(), &config.ImageConfig{})
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = New(context.Background(), &config.ImageConfig{
		Provider:  "openai",
		Providers: map[string]config.ImageProviderConfig{"openai": {}},
	})
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = New(context.Background(), &config.ImageConfig{Provider: "dalle"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "dalle"))
}
