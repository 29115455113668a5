package resilience

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"support-dojo/server/internal/config"
	"support-dojo/server/internal/models"
)

// generator mirrors the gateway's Generate signature so the guard can wrap
// it without importing the orchestrator.
type generator interface {
	Generate(ctx context.Context, conv *models.ConversationContext, message string, opts models.GenerationOptions) (*models.Completion, error)
}

// Guard wraps every call into the gateway with the circuit breaker and
// feeds the health signal. It satisfies the orchestrator's Generator
// contract, so callers cannot reach the gateway around it.
type Guard struct {
	inner          generator
	breaker        *CircuitBreaker
	recentFailures *atomic.Int64
	degradedAt     int64
	log            zerolog.Logger
}

func NewGuard(inner generator, cfg config.ResilienceConfig, log zerolog.Logger) *Guard {
	return &Guard{
		inner:          inner,
		breaker:        NewCircuitBreaker(cfg.FailureThreshold, cfg.OpenTimeout),
		recentFailures: atomic.NewInt64(0),
		degradedAt:     int64(cfg.DegradedFailures),
		log:            log.With().Str("component", "resilience").Logger(),
	}
}

// Generate checks the breaker, delegates, and records the outcome. While
// the breaker is open the upstream service is never touched.
func (g *Guard) Generate(ctx context.Context, conv *models.ConversationContext, message string, opts models.GenerationOptions) (*models.Completion, error) {
	if !g.breaker.Allow() {
		g.log.Warn().Str("conversation", conv.ID).Msg("rejecting call, circuit open")
		return nil, ErrCircuitOpen
	}

	completion, err := g.inner.Generate(ctx, conv, message, opts)
	if err != nil {
		g.breaker.RecordFailure()
		g.recentFailures.Inc()
		return nil, err
	}

	g.breaker.RecordSuccess()
	g.recentFailures.Store(0)
	return completion, nil
}

// HealthStatus is the tri-state health signal plus its inputs.
type HealthStatus struct {
	Status         string `json:"status"` // healthy | degraded | unhealthy
	CircuitOpen    bool   `json:"circuit_open"`
	RecentFailures int64  `json:"recent_failures"`
}

// Health maps breaker state and recent-failure count onto the tri-state
// signal by fixed thresholds.
func (g *Guard) Health() HealthStatus {
	state := g.breaker.State()
	failures := g.recentFailures.Load()

	status := "healthy"
	switch {
	case state.Open:
		status = "unhealthy"
	case failures >= g.degradedAt:
		status = "degraded"
	}

	return HealthStatus{
		Status:         status,
		CircuitOpen:    state.Open,
		RecentFailures: failures,
	}
}
