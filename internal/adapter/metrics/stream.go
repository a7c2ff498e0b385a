package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics holds metrics for WebSocket session snapshot streams.
type StreamMetrics struct {
	ActiveConnections prometheus.Gauge
	SnapshotsSent     prometheus.Counter
	Rejected          prometheus.Counter
}

func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session_stream",
			Name:      "active_connections",
			Help:      "Number of open session stream connections.",
		}),
		SnapshotsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_stream",
			Name:      "snapshots_sent_total",
			Help:      "Total number of session snapshots written to streams.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_stream",
			Name:      "rejected_connections_total",
			Help:      "Total number of stream connections rejected at the connection limit.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.SnapshotsSent, m.Rejected)
	return m
}
