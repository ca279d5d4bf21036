// Package retry provides bounded retry with backoff for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with configurable backoff,
// used for broker connection establishment and stream provisioning at
// startup. Retries are always bounded: when the attempt budget is exhausted
// the last error is returned and the caller decides whether that is fatal.
//
// # Core Functions
//
//   - Do: Execute function with retry and backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s exponential (normal operations)
//   - Connect(): 5 attempts, fixed 2s interval (initial broker connection)
//   - Provision(): 10 attempts, 50ms-1s (stream/consumer creation at startup)
//
// # Usage Examples
//
// Initial broker connection, where exhaustion is fatal:
//
//	err := retry.Do(ctx, retry.Connect(), func() error {
//	    return client.connect()
//	})
//
// Retry with result:
//
//	stream, err := retry.DoWithResult(ctx, retry.Provision(), func() (jetstream.Stream, error) {
//	    return js.CreateOrUpdateStream(ctx, streamCfg)
//	})
//
// Skipping retry for errors that cannot succeed on a second attempt:
//
//	return retry.NonRetryable(err)
//
// # Design Philosophy
//
// This package is intentionally minimal:
//
//   - No unbounded retry loops (a budget is always enforced)
//   - No metrics collection (use instrumentation at call site)
//   - No error classification (caller decides what to retry)
//
// # Context Cancellation
//
// All retry operations respect context cancellation and will immediately stop
// retrying when the context is cancelled, either during operation execution or
// during backoff delay.
package retry
