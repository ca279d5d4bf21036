package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/shopstream/metric"
)

// Metrics holds the router's Prometheus collectors
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authFailures    *prometheus.CounterVec
	publishFailures prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shopstream",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "End-to-end HTTP request latency",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"route"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "gateway",
			Name:      "auth_failures_total",
			Help:      "Rejected requests by reason",
		}, []string{"reason"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "gateway",
			Name:      "event_publish_failures_total",
			Help:      "Fan-out publish failures after successful mutations",
		}),
	}

	registry.PrometheusRegistry().MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.authFailures,
		m.publishFailures,
	)

	return m
}
