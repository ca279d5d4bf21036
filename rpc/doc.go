// Package rpc implements request/reply calls over the broker: a Client that
// publishes commands to a backend work queue, and a Correlator that owns the
// exclusive reply inbox those commands are answered on.
//
// # Correlation Model
//
// Each call carries a process-unique correlation token and the correlator's
// inbox as its return address, both in message headers so they survive
// JetStream capture. The correlator holds a pending map from token to a
// buffered waiter channel. When a reply arrives, the token is looked up and
// removed under a mutex, and the envelope is delivered on the waiter.
//
// One correlator serves one logical backend (user requests, item requests),
// and each holds its own inbox. A gateway process therefore runs one
// correlator/client pair per backend queue.
//
// # Timeout Arbitration
//
// Call guarantees exactly one resolution per call: the reply, or a timeout
// error, never both. Both the consume path and the timeout path try to
// remove the token from the pending map; the mutex makes removal the
// arbitration point. Whichever side removes the entry owns the resolution.
// A reply arriving after the timeout won finds no entry and is dropped
// silently. That is the designed discard path, counted in
// shopstream_rpc_replies_dropped_total and logged at debug.
//
//	client, err := rpc.NewClient(nc, correlator, "user_requests",
//	    rpc.WithCallTimeout(5*time.Second))
//	reply, err := client.Call(ctx, "verify_token", map[string]string{
//	    "token": sessionToken,
//	})
//	if err != nil {
//	    // transport condition: timeout, publish failure, cancellation
//	}
//	if reply.IsError() {
//	    // domain error reported by the backend, e.g. "invalid token"
//	}
//
// # Error Boundaries
//
// Domain errors travel inside the reply envelope (status "error" plus a
// message) and are returned as data. Go errors from Call are always
// transport conditions and are classified transient. A malformed reply body
// resolves its waiter with an error envelope carrying MsgMalformedReply
// instead of killing the consume loop or leaving the call to time out.
package rpc
