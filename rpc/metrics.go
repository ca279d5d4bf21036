package rpc

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/shopstream/metric"
)

// Metrics holds Prometheus metrics for one correlator/client pair
type Metrics struct {
	callsTotal     *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	repliesMatched prometheus.Counter
	repliesDropped *prometheus.CounterVec
	pendingCalls   prometheus.Gauge
}

// newMetrics creates and registers RPC metrics for one backend. The backend
// rides as a const label so multiple pairs can share the registry.
func newMetrics(registry *metric.MetricsRegistry, backend string) *Metrics {
	if registry == nil {
		return nil
	}

	constLabels := prometheus.Labels{"backend": backend}

	metrics := &Metrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "shopstream",
			Subsystem:   "rpc",
			Name:        "calls_total",
			Help:        "RPC calls by outcome",
			ConstLabels: constLabels,
		}, []string{"status"}),

		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "shopstream",
			Subsystem:   "rpc",
			Name:        "call_duration_seconds",
			Help:        "RPC round-trip duration",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			ConstLabels: constLabels,
		}, []string{"command"}),

		repliesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shopstream",
			Subsystem:   "rpc",
			Name:        "replies_matched_total",
			Help:        "Replies delivered to a waiting call",
			ConstLabels: constLabels,
		}),

		repliesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "shopstream",
			Subsystem:   "rpc",
			Name:        "replies_dropped_total",
			Help:        "Replies discarded without a waiting call",
			ConstLabels: constLabels,
		}, []string{"reason"}),

		pendingCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "shopstream",
			Subsystem:   "rpc",
			Name:        "pending_calls",
			Help:        "Calls currently awaiting a reply",
			ConstLabels: constLabels,
		}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.callsTotal,
		metrics.callDuration,
		metrics.repliesMatched,
		metrics.repliesDropped,
		metrics.pendingCalls,
	)

	return metrics
}
