package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(perMinute int) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := New(perMinute)
	l.now = c.now
	return l, c
}

func TestAllow_BurstThenRefill(t *testing.T) {
	l, c := newTestLimiter(3)

	for i := range 3 {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("fourth request within the minute should be rejected")
	}

	c.t = c.t.Add(20 * time.Second)
	if !l.Allow("1.2.3.4") {
		t.Error("one token should have refilled after 20s")
	}
	if l.Allow("1.2.3.4") {
		t.Error("only one token should have refilled")
	}
}

func TestAllow_PerClient(t *testing.T) {
	l, _ := newTestLimiter(1)

	if !l.Allow("a") || !l.Allow("b") {
		t.Fatal("first request of each client should be allowed")
	}
	if l.Allow("a") {
		t.Error("client a should be limited")
	}
}

func TestAllow_ZeroDisables(t *testing.T) {
	l, _ := newTestLimiter(0)
	for range 100 {
		if !l.Allow("a") {
			t.Fatal("zero limit should allow everything")
		}
	}
	if l.Clients() != 0 {
		t.Error("disabled limiter should not track clients")
	}
}

func TestAllow_SweepsIdleClients(t *testing.T) {
	l, c := newTestLimiter(5)
	l.Allow("a")
	l.Allow("b")

	c.t = c.t.Add(idleAfter + time.Second)
	l.Allow("c")
	if got := l.Clients(); got != 1 {
		t.Errorf("Clients = %d, want 1 after sweep", got)
	}
}

func TestSet_Wrap(t *testing.T) {
	s := NewSet(map[string]int{"ocr": 1, "tts": 0}, nil)
	var served int
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		served++
		w.WriteHeader(http.StatusNoContent)
	})
	h := s.Wrap("ocr", next)

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/image-to-text", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("10.0.0.1:5000"); rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := do("10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if do("10.0.0.2:5000").Code != http.StatusNoContent {
		t.Error("another client should not be limited")
	}
	if served != 2 {
		t.Errorf("served = %d, want 2", served)
	}

	if s.Wrap("tts", next) == nil || s.Limiter("missing") != nil {
		t.Error("unlimited endpoints should pass through")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct{ addr, want string }{
		{"192.168.1.10:4431", "192.168.1.10"},
		{"[::1]:80", "::1"},
		{"pipe", "pipe"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.addr
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
