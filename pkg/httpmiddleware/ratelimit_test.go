package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func fromAddr(addr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = addr
	return r
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ok, remaining, reset := l.Allow("k", start)
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, start.Add(time.Minute), reset)

	ok, _, _ = l.Allow("k", start.Add(time.Second))
	assert.True(t, ok)
	ok, remaining, _ = l.Allow("k", start.Add(2*time.Second))
	assert.False(t, ok)
	assert.Zero(t, remaining)

	// A quarter into the next window the previous one still weighs 1.5.
	ok, remaining, _ = l.Allow("k", start.Add(75*time.Second))
	assert.True(t, ok)
	assert.Zero(t, remaining)
	ok, _, _ = l.Allow("k", start.Add(80*time.Second))
	assert.False(t, ok)

	// Two thirds in it weighs less than one request.
	ok, _, _ = l.Allow("k", start.Add(100*time.Second))
	assert.True(t, ok)

	// After two idle windows the bucket starts over.
	ok, remaining, _ = l.Allow("k", start.Add(5*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
}

func TestLimiter_Sweep(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.Allow("old", now)
	l.Allow("new", now.Add(2*time.Minute))
	require.Equal(t, 2, l.Len())

	l.Sweep(now.Add(2*time.Minute + time.Second))
	assert.Equal(t, 1, l.Len())
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.1:9999")).Code)
	}

	w := serve(h, fromAddr("10.0.0.1:9999"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "too many requests", body.Message)
}

func TestRateLimit_PerClient(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.1:1234")).Code)
	assert.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.2:1234")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, fromAddr("10.0.0.1:5678")).Code)
}

func TestRateLimit_KeyFunc(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Cart-Session")
		},
	})(okHandler())

	withSession := func(s string) *http.Request {
		r := fromAddr("10.0.0.1:1")
		r.Header.Set("X-Cart-Session", s)
		return r
	}
	assert.Equal(t, http.StatusOK, serve(h, withSession("a")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, withSession("a")).Code)
	assert.Equal(t, http.StatusOK, serve(h, withSession("b")).Code)

	// No session falls back to the client address.
	assert.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.9:1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, fromAddr("10.0.0.9:2")).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(context.Background(), RateLimitConfig{})(okHandler())

	for range 10 {
		w := serve(h, fromAddr("10.0.0.1:1"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestClientIP(t *testing.T) {
	r := fromAddr("192.168.1.1:4444")
	assert.Equal(t, "192.168.1.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	assert.Equal(t, "203.0.113.50", ClientIP(r))

	assert.Equal(t, "pipe", ClientIP(fromAddr("pipe")))
}
