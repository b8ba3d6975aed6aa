package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit publishing.
type Metrics struct {
	Emitted             prometheus.Counter
	Dropped             *prometheus.CounterVec
	PersistFailures     prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

// NewMetrics registers audit metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Emitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "inmates_audit_emitted_total",
			Help: "Total number of audit events accepted for persistence",
		}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inmates_audit_dropped_total",
			Help: "Total number of audit events dropped before persistence",
		}, []string{"reason"}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "inmates_audit_persist_failures_total",
			Help: "Total number of audit event persistence failures",
		}),
		CircuitBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "inmates_audit_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) incEmitted() {
	if m == nil {
		return
	}
	m.Emitted.Inc()
}

func (m *Metrics) incDropped(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) incPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) setCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
