package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/rpc"
)

// getOrGenerateRequestID extracts the request ID from headers or generates
// one, so a request can be traced across the gateway and the backends
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with request IDs, logging, and metrics. The
// WebSocket route is registered unwrapped: the recorder does not implement
// http.Hijacker and would break the upgrade.
func (rt *Router) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := getOrGenerateRequestID(r)
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next(rec, r)

		elapsed := time.Since(start)
		if rt.metrics != nil {
			rt.metrics.requestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			rt.metrics.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		}
		rt.log.Debug("request handled",
			"route", route,
			"status", rec.status,
			"request_id", requestID,
			"duration_ms", elapsed.Milliseconds())
	}
}

// readBody reads the request body under the size cap. On failure it writes
// the error response itself and reports false.
func (rt *Router) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, rt.maxBody+1))
	if err != nil {
		rt.writeErrorBody(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if int64(len(body)) > rt.maxBody {
		rt.writeErrorBody(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", rt.maxBody))
		return nil, false
	}
	return body, true
}

// writeData writes a success response with the reply's data verbatim
func (rt *Router) writeData(w http.ResponseWriter, status int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	_, _ = w.Write(data)
}

func (rt *Router) writeErrorBody(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(map[string]string{"error": message})
	_, _ = w.Write(data)
}

// writeCallError answers a failed backend call. The full error goes to the
// log; the client sees only the sanitized form.
func (rt *Router) writeCallError(w http.ResponseWriter, r *http.Request, err error) {
	status := callStatus(err)
	rt.log.Warn("backend call failed",
		"path", r.URL.Path,
		"status", status,
		"error", err)
	rt.writeErrorBody(w, status, sanitizeCallError(err))
}

// writeDomainError answers a status=error reply. Domain messages come from
// our own backends and are already client-safe, so they pass through.
func (rt *Router) writeDomainError(w http.ResponseWriter, message string) {
	rt.writeErrorBody(w, domainStatus(message), message)
}

// callStatus maps a transport-level call failure to an HTTP status
func callStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case stderrors.Is(err, errors.ErrCallTimeout),
		stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeCallError returns a safe message for external clients. Broker
// subjects, inbox names, and wrapped detail never leave the process.
func sanitizeCallError(err error) string {
	switch {
	case err == nil:
		return "internal server error"
	case stderrors.Is(err, errors.ErrCallTimeout),
		stderrors.Is(err, context.DeadlineExceeded):
		return "gateway timeout"
	case errors.IsInvalid(err):
		return "invalid request"
	case errors.IsTransient(err):
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}

// domainStatus maps a backend's error-reply message to an HTTP status by
// its wording
func domainStatus(message string) int {
	if message == rpc.MsgMalformedReply {
		return http.StatusBadGateway
	}

	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "not found"):
		return http.StatusNotFound
	case strings.Contains(m, "exists"):
		return http.StatusConflict
	case strings.Contains(m, "token"),
		strings.Contains(m, "credentials"),
		strings.Contains(m, "unauthorized"):
		return http.StatusUnauthorized
	case strings.Contains(m, "permission"),
		strings.Contains(m, "forbidden"):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}
