// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the conversation pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	TurnsTotal         *prometheus.CounterVec
	ClassifierVerdicts *prometheus.CounterVec
	ClassifierCacheHit prometheus.Counter
	ProviderErrors     *prometheus.CounterVec
	FallbackAttempts   prometheus.Counter
	AlertsSent         prometheus.Counter
	SummariesWritten   prometheus.Counter
	TurnLatency        prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates all instruments on a private registry so repeated
// construction (tests, reload) never trips duplicate registration.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed conversation turns by outcome.",
		}, []string{"outcome"}),
		ClassifierVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_verdicts_total",
			Help:      "Safety classifier verdicts by result.",
		}, []string{"verdict"}),
		ClassifierCacheHit: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_cache_hits_total",
			Help:      "Safety classifications served from the verdict cache.",
		}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider call failures by provider and code.",
		}, []string{"provider", "code"}),
		FallbackAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_attempts_total",
			Help:      "Completion attempts made on fallback models.",
		}),
		AlertsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Emergency contact alerts successfully delivered.",
		}),
		SummariesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_written_total",
			Help:      "Conversation summaries persisted.",
		}),
		TurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of a processed turn in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 60, 120},
		}),
		registry: reg,
	}
}

// ObserveTurnLatency records the duration of one processed turn.
func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	m.TurnLatency.Observe(d.Seconds())
}

// Handler returns an HTTP handler serving this registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
