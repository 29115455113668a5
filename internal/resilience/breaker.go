package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned before any upstream attempt while the breaker
// is open. It always routes to a fallback reply.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreaker is the process-local fail-fast guard around the gateway.
// Closed until a threshold of consecutive failures opens it; while open,
// calls are rejected immediately. Once the open timeout elapses the breaker
// resets to closed and the counter clears, so the next call simply attempts
// again (half-open is implicit). Any success resets the failure counter.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	timeout   time.Duration

	open        bool
	failures    int
	openedAt    time.Time
	lastFailure time.Time
}

func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, timeout: timeout}
}

// Allow reports whether a call may proceed, resetting an expired open state.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return true
	}
	if time.Since(cb.openedAt) >= cb.timeout {
		cb.open = false
		cb.failures = 0
		return true
	}
	return false
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
	if !cb.open && cb.failures >= cb.threshold {
		cb.open = true
		cb.openedAt = cb.lastFailure
	}
}

// BreakerState is a snapshot for health reporting.
type BreakerState struct {
	Open        bool      `json:"open"`
	Failures    int       `json:"consecutive_failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerState{Open: cb.open, Failures: cb.failures, LastFailure: cb.lastFailure}
}
