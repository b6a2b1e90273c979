package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig controls the sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window length.
	Window time.Duration
	// KeyFunc derives the limiting key from a request. Nil uses the
	// client IP.
	KeyFunc func(*http.Request) string
}

// bucket counts requests for one key across the current window and the one
// before it. The previous window's count is weighted by its remaining
// overlap, which smooths the limit instead of resetting it at window edges.
type bucket struct {
	start time.Time
	curr  float64
	prev  float64
}

type limiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &limiter{cfg: cfg, buckets: make(map[string]*bucket)}
}

// allow records a request for key at time now and reports whether it fits
// the limit, along with the remaining allowance and when the current window
// resets.
func (l *limiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil {
		b = &bucket{start: now}
		l.buckets[key] = b
	}

	switch elapsed := now.Sub(b.start); {
	case elapsed >= 2*l.cfg.Window:
		// Idle long enough that both windows expired.
		b.prev, b.curr = 0, 0
		b.start = now
	case elapsed >= l.cfg.Window:
		b.prev, b.curr = b.curr, 0
		b.start = b.start.Add(l.cfg.Window)
	}

	weight := 1 - now.Sub(b.start).Seconds()/l.cfg.Window.Seconds()
	if weight < 0 {
		weight = 0
	}
	used := b.prev*weight + b.curr
	resetAt = b.start.Add(l.cfg.Window)

	if used >= float64(l.cfg.Max) {
		return 0, resetAt, false
	}

	b.curr++
	remaining = int(float64(l.cfg.Max) - used - 1)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, true
}

// sweep drops buckets idle for two full windows.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if now.Sub(b.start) >= 2*l.cfg.Window {
			delete(l.buckets, key)
		}
	}
}

// RateLimit enforces a per-key sliding window limit. Rejected requests get a
// 429 with a JSON body and Retry-After. Every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset.
//
// Stale keys are never evicted by this variant; use RateLimitWithCleanup on
// long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return limitHandler(newLimiter(cfg))
}

// RateLimitWithCleanup is RateLimit plus a background sweeper that evicts
// idle keys until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)

	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()

	return limitHandler(l)
}

func limitHandler(l *limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, ok := l.allow(l.cfg.KeyFunc(r), time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !ok {
				retryAfter := math.Ceil(time.Until(resetAt).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    http.StatusTooManyRequests,
					"message": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller address from X-Forwarded-For, X-Real-IP, or
// the connection's remote address, in that order.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop in the comma-separated chain.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
