package health

import (
	"sync"
	"time"

	"github.com/harrison/orchestrator/internal/orcherrors"
)

// BreakerState is one of closed/open/half-open.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// CircuitBreaker wraps a single worker's tool invocations. It opens after
// threshold consecutive failures, waits cooldown, then turns half-open: calls
// are let through until the next recorded outcome closes or reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	state       BreakerState
	failures    int
	openedAt    time.Time
}

// NewCircuitBreaker constructs a breaker with spec.md §4.6 defaults applied
// when threshold <= 0 or cooldown <= 0.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, state: StateClosed}
}

// State reports the breaker's current state, resolving an expired open
// cooldown into half-open as a side effect.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state
}

func (b *CircuitBreaker) maybeTransitionToHalfOpenLocked() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
	}
}

// CanExecute reports whether a call should be allowed through. Closed and
// half-open allow every call; open rejects with a typed error.
func (b *CircuitBreaker) CanExecute() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()

	if b.state == StateOpen {
		return &orcherrors.InfrastructureError{
			Subkind: orcherrors.InfraCircuitOpen,
			Message: "circuit breaker open, retry after cooldown",
		}
	}
	return nil
}

// RecordSuccess closes the breaker and resets the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
}

// RecordFailure increments the failure counter. In half-open, a single
// failure reopens immediately. In closed, reaching threshold opens it.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.open()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.open()
	}
}

func (b *CircuitBreaker) open() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.failures = 0
}
