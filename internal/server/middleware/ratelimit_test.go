package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeLimiter struct {
	allowed bool
	err     error

	key string
	ctx context.Context
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.key = key
	f.ctx = ctx
	return f.allowed, f.err
}

type ctxKey struct{}

func rateLimited(t *testing.T, limiter *fakeLimiter, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	RateLimit(limiter, 5, time.Second)(next).ServeHTTP(rec, req)
	return rec
}

func TestRateLimitDenies(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.RemoteAddr = "10.1.2.3:5555"

	rec := rateLimited(t, limiter, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"rate limited"}` {
		t.Errorf("body = %s, want the rate limited error shape", body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	// The limiter prefixes its own namespace, so the key carries only the
	// scope and client IP.
	if limiter.key != "orders:10.1.2.3" {
		t.Errorf("limiter key = %q, want orders:10.1.2.3", limiter.key)
	}
	if strings.Contains(limiter.key, "ratelimit") {
		t.Errorf("limiter key %q double-namespaces the limiter's prefix", limiter.key)
	}
}

func TestRateLimitAllowsAndPropagatesContext(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "v"))

	rec := rateLimited(t, limiter, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want pass-through 204", rec.Code)
	}
	if limiter.ctx == nil || limiter.ctx.Value(ctxKey{}) != "v" {
		t.Error("limiter did not receive the request context")
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{allowed: false, err: errors.New("redis down")}
	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)

	rec := rateLimited(t, limiter, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want pass-through on limiter failure", rec.Code)
	}
}

func TestClientIPPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"

	if got := clientIP(req); got != "10.0.0.1" {
		t.Errorf("remote addr ip = %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Real-IP", "10.0.0.2")
	if got := clientIP(req); got != "10.0.0.2" {
		t.Errorf("x-real-ip = %q, want 10.0.0.2", got)
	}

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	if got := clientIP(req); got != "10.0.0.3" {
		t.Errorf("x-forwarded-for = %q, want first hop 10.0.0.3", got)
	}
}
