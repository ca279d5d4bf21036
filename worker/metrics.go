package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/shopstream/metric"
)

// Metrics holds the worker's Prometheus collectors. The queue const label
// lets multiple workers in one process share a registry.
type Metrics struct {
	handledTotal   *prometheus.CounterVec
	handleDuration *prometheus.HistogramVec
	poisonTotal    prometheus.Counter
	panicsTotal    prometheus.Counter
	replyFailures  prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry, queue string) *Metrics {
	if registry == nil {
		return nil
	}

	constLabels := prometheus.Labels{"queue": queue}

	m := &Metrics{
		handledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "shopstream",
			Subsystem:   "worker",
			Name:        "handled_total",
			Help:        "Requests handled by command and reply status",
			ConstLabels: constLabels,
		}, []string{"command", "status"}),
		handleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "shopstream",
			Subsystem:   "worker",
			Name:        "handle_duration_seconds",
			Help:        "Time from delivery to acknowledgement",
			ConstLabels: constLabels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"command"}),
		poisonTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shopstream",
			Subsystem:   "worker",
			Name:        "poison_messages_total",
			Help:        "Unparseable requests terminated without redelivery",
			ConstLabels: constLabels,
		}),
		panicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shopstream",
			Subsystem:   "worker",
			Name:        "handler_panics_total",
			Help:        "Handler panics recovered into error replies",
			ConstLabels: constLabels,
		}),
		replyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shopstream",
			Subsystem:   "worker",
			Name:        "reply_publish_failures_total",
			Help:        "Replies that could not be published; the request is left for redelivery",
			ConstLabels: constLabels,
		}),
	}

	registry.PrometheusRegistry().MustRegister(
		m.handledTotal,
		m.handleDuration,
		m.poisonTotal,
		m.panicsTotal,
		m.replyFailures,
	)

	return m
}
