package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	// Max requests per Window. Zero or less disables limiting.
	Max    int
	Window time.Duration
	// KeyFunc selects the bucket of a request. Defaults to ClientIP. An empty
	// key falls back to ClientIP.
	KeyFunc func(*http.Request) string
}

type window struct {
	start time.Time
	prev  float64
	curr  float64
}

// Limiter is a sliding window counter per key: the previous window's count
// is weighted by how much of it still overlaps the sliding window.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*window
}

// NewLimiter returns a Limiter allowing limit events per window and key.
func NewLimiter(limit int, size time.Duration) *Limiter {
	return &Limiter{
		max:     limit,
		window:  size,
		buckets: make(map[string]*window),
	}
}

// Allow records an event for key at now. It reports whether the event is
// within the limit, how many events remain and when the current window ends.
func (l *Limiter) Allow(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, found := l.buckets[key]
	if !found {
		b = &window{start: now.Truncate(l.window)}
		l.buckets[key] = b
	}
	switch elapsed := now.Sub(b.start); {
	case elapsed >= 2*l.window:
		b.start, b.prev, b.curr = now.Truncate(l.window), 0, 0
	case elapsed >= l.window:
		b.start, b.prev, b.curr = b.start.Add(l.window), b.curr, 0
	}

	weight := 1 - float64(now.Sub(b.start))/float64(l.window)
	used := b.prev*math.Max(weight, 0) + b.curr
	reset = b.start.Add(l.window)
	if used >= float64(l.max) {
		return false, 0, reset
	}
	b.curr++
	return true, max(l.max-int(math.Ceil(used+1)), 0), reset
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep drops keys idle for two windows or more.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.start) >= 2*l.window {
			delete(l.buckets, k)
		}
	}
}

// RateLimit rejects requests over the configured rate with 429. While ctx is
// alive idle keys are swept every other window.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	l := NewLimiter(cfg.Max, cfg.Window)
	go func() {
		t := time.NewTicker(2 * cfg.Window)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				l.Sweep(now)
			}
		}
	}()

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				key = ClientIP(r)
			}
			now := time.Now()
			ok, remaining, reset := l.Allow(key, now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Sub(now).Seconds()))))
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP or the remote
// host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
