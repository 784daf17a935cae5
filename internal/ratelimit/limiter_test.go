package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLimiter_BurstThenRefill(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := newLimiter(2, 3, c.now)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("expected the bucket to be empty")
	}

	c.t = c.t.Add(500 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("expected one token after 500ms at 2/s")
	}
	if l.Allow() {
		t.Fatal("expected the bucket to be empty again")
	}
}

func TestNew_DefaultBurst(t *testing.T) {
	l := New(5, 0)
	if l.burst != 5 {
		t.Errorf("burst = %v, want 5", l.burst)
	}
}

func TestStore_PerKey(t *testing.T) {
	s := NewStore(1, 1)
	c := &clock{t: time.Unix(0, 0)}
	s.now = c.now

	if !s.Allow("a") || s.Allow("a") {
		t.Fatal("key a: expected one allowed request")
	}
	if !s.Allow("b") {
		t.Fatal("key b should have its own bucket")
	}
}

func TestMiddleware(t *testing.T) {
	s := NewStore(1, 1)
	c := &clock{t: time.Unix(0, 0)}
	s.now = c.now
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	if got := req("10.0.0.1:5000"); got != http.StatusOK {
		t.Fatalf("first request: %d", got)
	}
	if got := req("10.0.0.1:5001"); got != http.StatusTooManyRequests {
		t.Fatalf("second request from the same host: %d", got)
	}
	if got := req("10.0.0.2:5000"); got != http.StatusOK {
		t.Fatalf("other host: %d", got)
	}
}
