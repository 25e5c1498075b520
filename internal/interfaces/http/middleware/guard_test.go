package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime-story-api/internal/config"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.POST("/v1/stories/generate", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Limit: 2, Window: time.Hour}
	r := newEngine(RateLimit(cfg, NewLocalRateLimiter()))

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/v1/stories/generate").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/v1/stories/generate").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/v1/stories/generate").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Second}
	r := newEngine(RateLimit(cfg, failingLimiter{}))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/v1/stories/generate").Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	r := newEngine(RateLimit(config.RateLimitConfig{Enabled: false, Limit: 1}, NewLocalRateLimiter()))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/v1/stories/generate").Code)
	}
}

func TestRecoveryReturns500(t *testing.T) {
	r := newEngine(Recovery())
	w := do(r, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := newEngine(RequestID())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/stories/generate", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodPost, "/v1/stories/generate")
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
