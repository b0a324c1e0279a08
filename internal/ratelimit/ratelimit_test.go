package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/cache/memory"
	"github.com/MahdiBaghbani/confsync-go/internal/ratelimit"
)

func TestLimiter_Allow(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, ratelimit.PerMinute("test:", 5))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "client1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if want := int64(4 - i); result.Remaining != want {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, want, result.Remaining)
		}
	}

	result, err := limiter.Allow(ctx, "client1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Error("6th request should be denied")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", result.Remaining)
	}
}

func TestLimiter_DifferentKeys(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, ratelimit.PerMinute("test:", 2))
	ctx := context.Background()

	limiter.Allow(ctx, "user:1")
	limiter.Allow(ctx, "user:1")
	if result, _ := limiter.Allow(ctx, "user:1"); result.Allowed {
		t.Error("user:1 should be rate limited")
	}
	if result, _ := limiter.Allow(ctx, "user:2"); !result.Allowed {
		t.Error("user:2 should be allowed")
	}

	if result, _ := limiter.Check(ctx, "user:2"); !result.Allowed || result.Remaining != 1 {
		t.Errorf("Check should not count: %+v", result)
	}

	limiter.Reset(ctx, "user:1")
	if result, _ := limiter.Allow(ctx, "user:1"); !result.Allowed {
		t.Error("user:1 should be allowed after reset")
	}
}

func TestLimiter_DisabledAllowsEverything(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, ratelimit.PerMinute("test:", 0))
	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(context.Background(), "k")
		if err != nil || !result.Allowed {
			t.Fatalf("disabled limiter denied request %d: %v", i, err)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remote
		if got := ratelimit.ClientIP(r); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, ratelimit.PerMinute("test:", 2))
	handler := limiter.Middleware(ratelimit.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("expected X-RateLimit-Limit header")
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestMiddleware_EmptyKeySkips(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, ratelimit.PerMinute("test:", 1))
	handler := limiter.Middleware(func(*http.Request) string { return "" }, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
}
