// Package metric provides Prometheus-based metrics collection for ShopStream
// monitoring and observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (service status, error totals, NATS health) and
// component-specific metrics registered by the RPC client, fan-out bus,
// real-time hub, and HTTP router. Metrics are exposed through the gateway's
// /metrics endpoint via Handler.
//
// # Architecture
//
// The package follows a two-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Component Registry: Extensible registration for component-specific metrics
//     (MetricsRegistrar interface)
//
// This separates infrastructure concerns (core metrics) from application
// concerns (component metrics) while keeping a single exposition endpoint.
//
// # Basic Usage
//
// Setting up metrics collection:
//
//	registry := metric.NewMetricsRegistry()
//	mux.Handle("GET /metrics", registry.Handler())
//
//	// Record core platform metrics
//	core := registry.CoreMetrics()
//	core.RecordServiceStatus("gateway", 2)
//	core.RecordNATSStatus(true)
//
// # Component Metrics
//
// Components register their own metrics at construction time:
//
//	calls := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "shopstream",
//	    Subsystem: "rpc",
//	    Name:      "calls_total",
//	    Help:      "Total number of RPC calls issued",
//	})
//	if err := registry.RegisterCounter("rpc", "calls_total", calls); err != nil {
//	    return err
//	}
//
// Registration is keyed by service and metric name; a duplicate key or a
// Prometheus-level conflict returns an invalid error rather than panicking,
// so a misconfigured component fails its own startup instead of the process.
//
// # Naming Conventions
//
// All metrics use the "shopstream" namespace with the component as subsystem:
//
//	shopstream_rpc_calls_total
//	shopstream_fanout_events_published_total
//	shopstream_realtime_connections
//	shopstream_gateway_http_requests_total
package metric
