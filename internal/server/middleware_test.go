package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterRefills(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(2, 3)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d within burst rejected", i)
		}
	}
	if rl.Allow("a") {
		t.Fatal("request beyond burst allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("buckets must be per key")
	}

	clock = clock.Add(500 * time.Millisecond)
	if !rl.Allow("a") {
		t.Fatal("one token should have refilled after 500ms at 2/s")
	}
	if rl.Allow("a") {
		t.Fatal("only one token should have refilled")
	}
}

func TestRateLimiterSweepsIdleBuckets(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return clock }

	rl.Allow("old")
	clock = clock.Add(staleAfter + time.Second)
	rl.Allow("new")

	if _, ok := rl.buckets["old"]; ok {
		t.Fatal("idle bucket survived a sweep")
	}
	if _, ok := rl.buckets["new"]; !ok {
		t.Fatal("fresh bucket missing")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote, xff, want string
	}{
		{"10.0.0.1:5555", "", "10.0.0.1"},
		{"10.0.0.1:5555", "203.0.113.7", "203.0.113.7"},
		{"10.0.0.1:5555", " 203.0.113.7 , 10.0.0.2", "203.0.113.7"},
		{"pipe", "", "pipe"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = tt.remote
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := clientIP(r); got != tt.want {
			t.Fatalf("clientIP(%q, %q) = %q, want %q", tt.remote, tt.xff, got, tt.want)
		}
	}
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limited := 0
	h := RateLimitMiddleware(NewRateLimiter(0, 1), logger, func() { limited++ })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
		if rec.Code != want {
			t.Fatalf("request %d: status %d, want %d", i, rec.Code, want)
		}
	}
	if limited != 1 {
		t.Fatalf("onLimit called %d times, want 1", limited)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := ChainMiddleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}
}
