package realtime

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/shopstream/metric"
)

// Metrics holds the hub's Prometheus collectors
type Metrics struct {
	clientsConnected   prometheus.Gauge
	connectionTotal    prometheus.Counter
	disconnectionTotal *prometheus.CounterVec
	eventsSent         *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shopstream",
			Subsystem: "realtime",
			Name:      "clients_connected",
			Help:      "Number of currently registered WebSocket connections",
		}),
		connectionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "realtime",
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted",
		}),
		disconnectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "realtime",
			Name:      "disconnections_total",
			Help:      "Total WebSocket disconnections by reason",
		}, []string{"reason"}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "realtime",
			Name:      "events_sent_total",
			Help:      "Events pushed to clients by event type",
		}, []string{"type"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopstream",
			Subsystem: "realtime",
			Name:      "errors_total",
			Help:      "Hub errors by kind",
		}, []string{"kind"}),
	}

	registry.PrometheusRegistry().MustRegister(
		m.clientsConnected,
		m.connectionTotal,
		m.disconnectionTotal,
		m.eventsSent,
		m.errorsTotal,
	)

	return m
}
