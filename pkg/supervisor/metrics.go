package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the supervisor's prometheus instruments.
type Metrics struct {
	requests  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	cacheHits prometheus.Counter
	cacheMiss prometheus.Counter
	fallbacks prometheus.Counter
	latency   *prometheus.HistogramVec
}

// NewMetrics registers the supervisor instruments on reg. A nil registerer
// gets a private registry, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensei_requests_total",
			Help: "Handled requests by intent and provenance.",
		}, []string{"intent", "provenance"}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensei_failures_total",
			Help: "Requests that exhausted every downstream path, by intent.",
		}, []string{"intent"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensei_cache_hits_total",
			Help: "Semantic cache hits.",
		}),

		cacheMiss: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensei_cache_misses_total",
			Help: "Semantic cache misses.",
		}),

		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensei_provider_fallbacks_total",
			Help: "Responses generated through a fallback provider.",
		}),

		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sensei_request_duration_seconds",
			Help:    "Request handling latency by intent.",
			Buckets: prometheus.DefBuckets,
		}, []string{"intent"}),
	}
}
