// Package circuitbreaker stops calling an endpoint that keeps failing. The
// network post-render actions give each destination its own Breaker so a
// dead review server does not stall every render batch on its timeout.
//
// State transitions:
//
//	closed    -> open       after FailureThreshold consecutive failures
//	open      -> half_open  once Timeout has elapsed
//	half_open -> closed     on a success
//	half_open -> open       on a failure
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker's current state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Do while the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// Breaker guards a single destination.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	threshold int
	timeout   time.Duration
	openUntil time.Time
	now       func() time.Time
}

// New returns a closed Breaker. Zero or negative values default to
// threshold=5 and timeout=30s.
func New(threshold int, timeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Breaker{threshold: threshold, timeout: timeout, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolve()
}

// resolve must be called with b.mu held.
func (b *Breaker) resolve() State {
	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		b.state = StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolve() != StateOpen
}

// Record updates the breaker with the outcome of a call.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.state = StateClosed
		b.failures = 0
		return
	}
	switch b.resolve() {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.failures = 0
	b.openUntil = b.now().Add(b.timeout)
}

// Do runs fn unless the breaker is open, and records its outcome. Context
// cancellation is not counted as a failure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	b.Record(err)
	return err
}
