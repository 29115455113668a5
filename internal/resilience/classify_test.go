package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"circuit open", ErrCircuitOpen, ClassCircuitOpen},
		{"wrapped circuit open", fmt.Errorf("guard: %w", ErrCircuitOpen), ClassCircuitOpen},
		{"api 401", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, ClassFatal},
		{"api 403", &openai.APIError{HTTPStatusCode: http.StatusForbidden}, ClassFatal},
		{"api 429", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, ClassTransient},
		{"api 500", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, ClassTransient},
		{"api 503", &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"bad api key", errors.New("Incorrect API key provided"), ClassFatal},
		{"quota", errors.New("insufficient_quota: plan limit reached"), ClassFatal},
		{"rate limited", errors.New("rate limit exceeded, retry later"), ClassTransient},
		{"connection refused", errors.New("dial tcp: connection refused"), ClassTransient},
		{"unknown", errors.New("something odd happened"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(errors.New("invalid api key")) {
		t.Error("fatal failures must not be retryable")
	}
	if IsRetryable(ErrCircuitOpen) {
		t.Error("circuit rejections must not be retryable")
	}
	if !IsRetryable(errors.New("request timed out")) {
		t.Error("transient failures must be retryable")
	}
}

func TestRetryWithBackoffStopsOnFatal(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nopLogger(), func() error {
		calls++
		return errors.New("unauthorized")
	})
	if err == nil {
		t.Fatal("expected the fatal error back")
	}
	if calls != 1 {
		t.Errorf("fatal failure must not be retried, got %d calls", calls)
	}
}

func TestRetryWithBackoffSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nopLogger(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("RetryWithBackoff: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
