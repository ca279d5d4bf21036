package fanout

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/shopstream/metric"
)

// Metrics holds Prometheus metrics for the fan-out bus
type Metrics struct {
	published *prometheus.CounterVec
	received  *prometheus.CounterVec
	dropped   prometheus.Counter
}

// newMetrics creates and registers bus metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "fanout",
			Name:      "events_published_total",
			Help:      "Events published to the fan-out channel",
		}, []string{"type"}),

		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "fanout",
			Name:      "events_received_total",
			Help:      "Events received from the fan-out channel",
		}, []string{"type"}),

		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "fanout",
			Name:      "events_dropped_total",
			Help:      "Malformed events discarded without delivery",
		}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.published,
		metrics.received,
		metrics.dropped,
	)

	return metrics
}
