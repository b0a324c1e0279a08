// Package ratelimit provides fixed-window rate limiting on top of the cache
// counters, so limits are shared between replicas when the redis driver is used.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/appctx"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/cache"
)

// Config defines rate limiting parameters.
type Config struct {
	// RequestsPerWindow is the maximum requests allowed per window.
	// Zero or less disables the limiter.
	RequestsPerWindow int64

	Window time.Duration

	// KeyPrefix separates the counters of different limiters.
	KeyPrefix string
}

// PerMinute returns a one minute window config.
func PerMinute(prefix string, n int) *Config {
	return &Config{
		RequestsPerWindow: int64(n),
		Window:            time.Minute,
		KeyPrefix:         prefix,
	}
}

// Limiter counts requests per key in a cache.Counter.
type Limiter struct {
	counter cache.Counter
	config  *Config
	now     func() time.Time
}

// New creates a new rate limiter.
func New(c cache.Counter, cfg *Config) *Limiter {
	if cfg == nil {
		cfg = PerMinute("ratelimit:", 60)
	}
	return &Limiter{counter: c, config: cfg, now: time.Now}
}

// Result contains the rate limit check result.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Enabled reports whether the limiter enforces anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.RequestsPerWindow > 0
}

// Allow counts one request for key and reports whether it fits the window.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	count, err := l.counter.Increment(ctx, l.config.KeyPrefix+key, 1, l.config.Window)
	if err != nil {
		return nil, err
	}
	return l.result(count, count <= l.config.RequestsPerWindow), nil
}

// Check reports the state for key without counting a request.
func (l *Limiter) Check(ctx context.Context, key string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	count, err := l.counter.GetCount(ctx, l.config.KeyPrefix+key)
	if err != nil {
		return nil, err
	}
	return l.result(count, count < l.config.RequestsPerWindow), nil
}

func (l *Limiter) result(count int64, allowed bool) *Result {
	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   l.now().Add(l.config.Window),
	}
}

// Reset clears the rate limit for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.counter.Reset(ctx, l.config.KeyPrefix+key)
}

// KeyFunc derives the limiter key for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ClientIP keys by the client address. It expects chi's RealIP middleware to
// have already rewritten RemoteAddr from the forwarding headers.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// Middleware applies the limiter to every request. Requests over the limit
// are answered by onLimited.
func (l *Limiter) Middleware(key KeyFunc, onLimited http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" || !l.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			result, err := l.Allow(r.Context(), k)
			if err != nil {
				// fail open; the cache being down must not lock users out
				appctx.GetLogger(r.Context()).Warn("rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.config.RequestsPerWindow, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.config.Window.Seconds())))
				onLimited(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
