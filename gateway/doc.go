// Package gateway exposes the HTTP surface and translates it onto backend
// commands.
//
// Every route except /ws follows the same shape: read the body under a
// size cap, send one command to the owning backend, and map the outcome
// onto HTTP. Three outcome classes exist and they map differently:
//
//   - transport failures (the call never completed): timeout → 504,
//     broker unavailable → 503, bad request payload → 400. The client sees
//     a sanitized message; the wrapped detail stays in the log.
//   - domain errors (the backend answered status=error): the message text
//     picks the status: "not found" → 404, "exists" → 409,
//     token/credential wording → 401, permission wording → 403, a
//     malformed backend reply → 502, anything else → 400. The message
//     passes through to the client verbatim.
//   - success: the reply's data field is the response body, verbatim.
//
// Item routes require a Bearer token, verified per request with a
// verify_token call to the user backend. A request with no token is
// rejected 401 before any backend traffic.
//
// Mutating item routes publish the resulting item_added, item_updated, or
// item_deleted event after the backend confirms the mutation. Publication
// is best effort: a failure is logged and counted, never surfaced to the
// HTTP client.
//
// Error responses are always JSON: {"error": "..."}.
package gateway
