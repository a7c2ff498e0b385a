package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felle787/LocalRadar2/internal/session"
)

// BootstrapMetrics records profile bootstrap outcomes. It implements session.Observer.
type BootstrapMetrics struct {
	Settled        *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	FallbackWrites *prometheus.CounterVec
}

var _ session.Observer = (*BootstrapMetrics)(nil)

func NewBootstrapMetrics(reg prometheus.Registerer) *BootstrapMetrics {
	m := &BootstrapMetrics{
		Settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "profile_bootstrap",
			Name:      "settled_total",
			Help:      "Total number of profile bootstraps that reached READY, by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "profile_bootstrap",
			Name:      "duration_seconds",
			Help:      "Time from session start to READY, by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"outcome"}),
		FallbackWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "profile_bootstrap",
			Name:      "fallback_write_failures_total",
			Help:      "Total number of failed default profile writes, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.Settled, m.Duration, m.FallbackWrites)
	return m
}

func (m *BootstrapMetrics) BootstrapSettled(outcome session.Outcome, elapsed time.Duration) {
	m.Settled.WithLabelValues(outcome.String()).Inc()
	m.Duration.WithLabelValues(outcome.String()).Observe(elapsed.Seconds())
}

func (m *BootstrapMetrics) FallbackWriteFailed(outcome session.Outcome) {
	m.FallbackWrites.WithLabelValues(outcome.String()).Inc()
}
