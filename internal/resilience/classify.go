package resilience

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// FailureClass is the taxonomy routing decision for an upstream error.
type FailureClass string

const (
	// ClassTransient covers timeouts, rate limits, overload and network
	// failures. Eligible for backoff retry; never surfaced raw.
	ClassTransient FailureClass = "transient"
	// ClassFatal covers auth and quota failures. Not retried.
	ClassFatal FailureClass = "fatal"
	// ClassCircuitOpen is the synthetic rejection from an open breaker.
	ClassCircuitOpen FailureClass = "circuit_open"
)

var transientSignatures = []string{
	"rate limit", "rate_limit", "too many requests",
	"timeout", "timed out", "deadline exceeded",
	"connection refused", "connection reset", "network", "no such host",
	"overloaded", "server_error", "service unavailable", "bad gateway",
}

var fatalSignatures = []string{
	"invalid api key", "incorrect api key", "unauthorized", "forbidden",
	"insufficient_quota", "quota exceeded", "billing",
}

// Classify maps an error to its failure class. openai API errors are
// classified by status code first, everything else by signature matching.
func Classify(err error) FailureClass {
	if errors.Is(err, ErrCircuitOpen) {
		return ClassCircuitOpen
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired:
			return ClassFatal
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return ClassTransient
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range fatalSignatures {
		if strings.Contains(msg, sig) {
			return ClassFatal
		}
	}
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return ClassTransient
		}
	}
	// Unknown upstream failures are treated as transient so they stay
	// eligible for the fallback path without being re-raised to users.
	return ClassTransient
}

// IsRetryable reports whether a backoff retry may help.
func IsRetryable(err error) bool {
	return Classify(err) == ClassTransient
}

// backoffDelays is the fixed retry delay table.
var backoffDelays = []time.Duration{time.Second, 2 * time.Second, 5 * time.Second}

// RetryWithBackoff runs fn, retrying retryable failures against the fixed
// delay table. It is a facility for callers that opt in; it is independent
// of the circuit breaker and of the gateway's fallback-model retry.
func RetryWithBackoff(ctx context.Context, log zerolog.Logger, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= len(backoffDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelays[attempt-1]):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		log.Warn().Err(lastErr).Int("attempt", attempt+1).Msg("retryable failure, backing off")
	}
	return lastErr
}
