package gateway

import (
	"context"
	stderrors "errors"
	"net/http"
)

// bearerToken pulls the client token from the Authorization header. REST
// clients can always set headers, so unlike the WebSocket path there is no
// query-parameter fallback.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// requireAuth verifies the caller's token against the user backend before
// invoking the wrapped handler. A request without a token is rejected
// without any backend call.
func (rt *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			rt.countAuthFailure("missing_token")
			rt.writeErrorBody(w, http.StatusUnauthorized, "missing token")
			return
		}

		reply, err := rt.users.Call(r.Context(), "verify_token", map[string]string{"token": token})
		if err != nil {
			rt.countAuthFailure("verify_unavailable")
			rt.writeCallError(w, r, err)
			return
		}
		if reply.IsError() {
			rt.countAuthFailure("invalid_token")
			rt.writeErrorBody(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r)
	}
}

func (rt *Router) countAuthFailure(reason string) {
	if rt.metrics != nil {
		rt.metrics.authFailures.WithLabelValues(reason).Inc()
	}
}

// NewAuthorizer adapts a user-backend caller into the token check the
// realtime hub runs before upgrading a connection. Transport failures pass
// through with their classification intact so the hub can answer 503
// instead of 401.
func NewAuthorizer(users Caller) func(ctx context.Context, token string) error {
	return func(ctx context.Context, token string) error {
		reply, err := users.Call(ctx, "verify_token", map[string]string{"token": token})
		if err != nil {
			return err
		}
		if reply.IsError() {
			return stderrors.New(reply.Message)
		}
		return nil
	}
}
