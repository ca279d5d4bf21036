// Package health provides health monitoring for ShopStream components
// with thread-safe status tracking, aggregation, and an HTTP endpoint.
//
// The health package tracks the status of individual components (broker
// connection, realtime hub, RPC clients) and aggregates them into the
// system-wide answer served at /healthz.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: component operating normally
//   - Degraded: component operating with reduced functionality
//   - Unhealthy: component not functioning properly
//
// The three-state model lets a replica that is reconnecting to the broker
// report degraded (keep routing traffic, raise an alert) while a replica
// whose connection is gone reports unhealthy (stop routing traffic).
//
// # Core Components
//
// Status: Individual component health state containing status level,
// descriptive message, timestamp, optional metrics, and hierarchical
// sub-statuses.
//
// Monitor: Thread-safe centralized tracking for multiple component
// statuses with concurrent read/write access.
//
// Handler: http.Handler that polls registered Checkers on each request,
// aggregates the results, and answers 200 while the system is healthy or
// degraded and 503 once any component is unhealthy.
//
// # Basic Usage
//
// Wiring the gateway's health endpoint:
//
//	handler := health.NewHandler("gateway", logger)
//	handler.RegisterFunc("broker", func() health.Status {
//	    if nc.IsHealthy() {
//	        return health.NewHealthy("broker", "connected")
//	    }
//	    return health.NewUnhealthy("broker", "disconnected")
//	})
//	mux.Handle("GET /healthz", handler)
//
// Tracking component health over time:
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("broker", "connected")
//	monitor.UpdateDegraded("hub", "slow consumer evictions")
//	system := monitor.AggregateHealth("gateway")
//
// # Aggregation Rules
//
// Aggregation is worst-case: any unhealthy component marks the system
// unhealthy; otherwise any degraded component marks it degraded; otherwise
// the system is healthy.
//
// # Security
//
// Error messages passed through FromError are sanitized before they are
// exposed, since /healthz responses travel over HTTP:
//   - URLs (http://, https://, nats://, ws://, wss://) → [URL]
//   - File paths (Unix and Windows) → [PATH]
//   - IP addresses → [IP], port numbers → [PORT]
//   - Credentials (password=X, token=X, ...) → [REDACTED]
//
// Sanitization has no opt-out; over-redacting a debug message is cheaper
// than leaking a broker URL with embedded credentials.
//
// # Error Handling Philosophy
//
// The health package does not return errors because it represents the
// result of error handling, not part of error propagation. Components
// wrap their errors with the errors package first; FromError then turns
// the final text into a safe, displayable status.
package health
