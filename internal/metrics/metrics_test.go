package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"support-dojo/server/internal/models"
)

func TestRecordExchangeCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	score := 85
	sink.RecordExchange(models.ExchangeMetrics{
		ConversationID:   "conv-1",
		TokensUsed:       42,
		Latency:          120 * time.Millisecond,
		Model:            "gpt-4o",
		ConsistencyScore: &score,
	})
	sink.RecordExchange(models.ExchangeMetrics{
		ConversationID: "conv-2",
		Model:          "fallback",
		WasFallback:    true,
	})

	if got := testutil.ToFloat64(sink.exchanges.WithLabelValues("gpt-4o")); got != 1 {
		t.Errorf("expected 1 gpt-4o exchange, got %v", got)
	}
	if got := testutil.ToFloat64(sink.exchanges.WithLabelValues("fallback")); got != 1 {
		t.Errorf("expected 1 fallback exchange, got %v", got)
	}
	if got := testutil.ToFloat64(sink.fallbacks); got != 1 {
		t.Errorf("expected 1 fallback reply, got %v", got)
	}
	if got := testutil.ToFloat64(sink.tokensUsed); got != 42 {
		t.Errorf("expected 42 tokens counted, got %v", got)
	}
}

func TestRecordExchangeSkipsAbsentFields(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	// No tokens, no latency, no score: only the exchange counter moves.
	sink.RecordExchange(models.ExchangeMetrics{ConversationID: "conv-1", Model: "gpt-4o"})

	if got := testutil.ToFloat64(sink.tokensUsed); got != 0 {
		t.Errorf("expected no tokens counted, got %v", got)
	}
	if got := testutil.ToFloat64(sink.fallbacks); got != 0 {
		t.Errorf("expected no fallbacks counted, got %v", got)
	}
}
