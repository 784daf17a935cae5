// Package ratelimit provides an in-memory token-bucket rate limiter and the
// HTTP middleware `review4d serve` uses to limit clients by address.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter is a single token bucket.
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // tokens added per second
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// New creates a Limiter allowing ratePerSecond events/s with a burst
// capacity. If burst <= 0, it defaults to ratePerSecond.
func New(ratePerSecond, burst float64) *Limiter {
	return newLimiter(ratePerSecond, burst, time.Now)
}

func newLimiter(rate, burst float64, now func() time.Time) *Limiter {
	if burst <= 0 {
		burst = rate
	}
	return &Limiter{rate: rate, burst: burst, tokens: burst, lastRefill: now(), now: now}
}

// Allow consumes one token and reports whether the event is permitted.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now

	if l.tokens >= 1.0 {
		l.tokens--
		return true
	}
	return false
}

// Store keeps one Limiter per key.
type Store struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rate     float64
	burst    float64
	now      func() time.Time
}

// NewStore creates a Store whose limiters share rate and burst.
func NewStore(ratePerSecond, burst float64) *Store {
	return &Store{
		limiters: make(map[string]*Limiter),
		rate:     ratePerSecond,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow checks, creating if needed, the limiter for key.
func (s *Store) Allow(key string) bool {
	s.mu.Lock()
	l, ok := s.limiters[key]
	if !ok {
		l = newLimiter(s.rate, s.burst, s.now)
		s.limiters[key] = l
	}
	s.mu.Unlock()
	return l.Allow()
}

// Middleware rejects requests over the limit with 429. Clients are keyed by
// the host part of RemoteAddr.
func (s *Store) Middleware(next http.Handler) http.Handler {
	retryAfter := "1"
	if s.rate > 0 && s.rate < 1 {
		retryAfter = strconv.Itoa(int(1/s.rate + 0.5))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}
		if !s.Allow(key) {
			w.Header().Set("Retry-After", retryAfter)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"rate_limit_error","code":"rate_limited"}}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
