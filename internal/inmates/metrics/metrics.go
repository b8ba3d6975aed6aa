package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for inmate lookups.
type Metrics struct {
	// Provider fetch latencies by jurisdiction
	FetchLatency *prometheus.HistogramVec

	// Provider failures by jurisdiction and error category
	ProviderErrors *prometheus.CounterVec

	// Records dropped by the normalizer, by jurisdiction
	NormalizationFailures *prometheus.CounterVec

	// Records returned to callers, by jurisdiction
	RecordsReturned *prometheus.CounterVec

	// Overall query latency by query kind
	QueryLatency *prometheus.HistogramVec

	// Result cache lookups by outcome ("hit", "miss", "error")
	CacheLookups *prometheus.CounterVec
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the lookup metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inmates_provider_fetch_duration_seconds",
			Help:    "Duration of provider fetches by jurisdiction",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"jurisdiction"}),

		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inmates_provider_errors_total",
			Help: "Total provider failures by jurisdiction and category",
		}, []string{"jurisdiction", "category"}),

		NormalizationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inmates_normalization_failures_total",
			Help: "Total raw records dropped during normalization",
		}, []string{"jurisdiction"}),

		RecordsReturned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inmates_records_returned_total",
			Help: "Total canonical records returned by jurisdiction",
		}, []string{"jurisdiction"}),

		QueryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inmates_query_duration_seconds",
			Help:    "Duration of aggregate queries including every provider",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inmates_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveFetchLatency records the duration of one provider fetch.
func (m *Metrics) ObserveFetchLatency(jurisdiction string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(jurisdiction).Observe(d.Seconds())
	}
}

// IncrementProviderError records a provider failure.
func (m *Metrics) IncrementProviderError(jurisdiction, category string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(jurisdiction, category).Inc()
	}
}

// IncrementNormalizationFailure records a dropped raw record.
func (m *Metrics) IncrementNormalizationFailure(jurisdiction string) {
	if m != nil {
		m.NormalizationFailures.WithLabelValues(jurisdiction).Inc()
	}
}

// AddRecordsReturned records how many canonical records a provider contributed.
func (m *Metrics) AddRecordsReturned(jurisdiction string, n int) {
	if m != nil && n > 0 {
		m.RecordsReturned.WithLabelValues(jurisdiction).Add(float64(n))
	}
}

// ObserveQueryLatency records the total duration of an aggregate query.
func (m *Metrics) ObserveQueryLatency(kind string, d time.Duration) {
	if m != nil {
		m.QueryLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncrementCacheLookup records a result cache lookup outcome.
func (m *Metrics) IncrementCacheLookup(outcome string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(outcome).Inc()
	}
}
