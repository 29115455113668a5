package resilience

import (
	"testing"
	"time"
)

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if !cb.Allow() {
		t.Error("breaker must stay closed below the failure threshold")
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.Allow() {
		t.Error("breaker must open at the failure threshold")
	}
	if state := cb.State(); !state.Open || state.Failures != 3 {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if !cb.Allow() {
		t.Error("success must reset the consecutive-failure count")
	}
}

func TestBreakerResetsAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(2, 30*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(50 * time.Millisecond)

	if !cb.Allow() {
		t.Error("breaker must allow calls again after the open timeout")
	}
	if state := cb.State(); state.Open || state.Failures != 0 {
		t.Errorf("expired breaker should be closed with a clear counter, got %+v", state)
	}
}

func TestBreakerFastFailsWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)

	cb.RecordFailure()
	for i := 0; i < 5; i++ {
		if cb.Allow() {
			t.Fatal("open breaker must reject every call before the timeout")
		}
	}
}
