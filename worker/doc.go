// Package worker is the backend boundary: it consumes one request queue,
// dispatches commands to registered handlers, and publishes each reply to
// the requesting gateway's reply inbox.
//
// # Delivery contract
//
// Requests arrive through a durable, explicit-ack consumer on the shared
// work-queue stream. Every replica of a backend uses the same durable name,
// so each request is delivered to exactly one replica. A request is acked
// only after its reply has been published; a crash or reply-publish failure
// before that point leaves the request to be redelivered. Handlers
// therefore run under at-least-once semantics and own their idempotency.
//
// A body that does not parse as a request envelope is terminated rather
// than acked or left alone: redelivering a poison message changes nothing.
//
// Unknown commands, handler errors, and handler panics all resolve as
// status=error replies to the caller; none of them disturb the consume
// loop.
//
// # Usage
//
//	wrk, err := worker.New(nc, worker.DefaultUserConfig(), logger, registry)
//	if err != nil {
//		return err
//	}
//	users := backends.NewUserStore()
//	wrk.Handle("signup", users.Signup)
//	wrk.Handle("login", users.Login)
//	wrk.Handle("verify_token", users.VerifyToken)
//	return wrk.Run(ctx)
//
// The handlers in the backends subpackage are in-memory references used by
// the demo binary and the end-to-end tests.
package worker
