package metrics

import "github.com/prometheus/client_golang/prometheus"

type GeocodeMetrics struct {
	Requests *prometheus.CounterVec
	Duration prometheus.Histogram
}

func NewGeocodeMetrics(reg prometheus.Registerer) *GeocodeMetrics {
	m := &GeocodeMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geocoder",
			Name:      "requests_total",
			Help:      "Total number of geocoding lookups, by result.",
		}, []string{"result"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "geocoder",
			Name:      "request_duration_seconds",
			Help:      "Duration of geocoding lookups including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.Requests, m.Duration)
	return m
}
