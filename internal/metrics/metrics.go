package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
)

// PrometheusSink implements the write-only metrics contract on a prometheus
// registry. Recording never blocks and never fails the calling exchange.
type PrometheusSink struct {
	exchanges        *prometheus.CounterVec
	fallbacks        prometheus.Counter
	tokensUsed       prometheus.Counter
	latencySeconds   prometheus.Histogram
	consistencyScore prometheus.Histogram
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_exchanges_total",
			Help: "Completed customer-response exchanges by model.",
		}, []string{"model"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_fallback_replies_total",
			Help: "Exchanges answered from the canned fallback pools.",
		}),
		tokensUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_tokens_used_total",
			Help: "Upstream completion tokens consumed.",
		}),
		latencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_exchange_latency_seconds",
			Help:    "End-to-end latency of one exchange.",
			Buckets: prometheus.DefBuckets,
		}),
		consistencyScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_consistency_score",
			Help:    "Persona consistency score observed after validation.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	reg.MustRegister(s.exchanges, s.fallbacks, s.tokensUsed, s.latencySeconds, s.consistencyScore)
	return s
}

func (s *PrometheusSink) RecordExchange(m models.ExchangeMetrics) {
	s.exchanges.WithLabelValues(m.Model).Inc()
	if m.WasFallback {
		s.fallbacks.Inc()
	}
	if m.TokensUsed > 0 {
		s.tokensUsed.Add(float64(m.TokensUsed))
	}
	if m.Latency > 0 {
		s.latencySeconds.Observe(m.Latency.Seconds())
	}
	if m.ConsistencyScore != nil {
		s.consistencyScore.Observe(float64(*m.ConsistencyScore))
	}
}

var _ interfaces.MetricsSink = (*PrometheusSink)(nil)
