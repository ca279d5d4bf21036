package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Checker reports the current health of one component. Implementations are
// polled on every health request, so a check must be cheap: read a cached
// connection state, not dial the network.
type Checker interface {
	CheckHealth() Status
}

// CheckerFunc adapts a plain function to the Checker interface.
type CheckerFunc func() Status

// CheckHealth calls f.
func (f CheckerFunc) CheckHealth() Status { return f() }

// Handler serves the aggregate health of registered checkers as JSON.
// The response code is 200 while the system is healthy or degraded and
// 503 once any component reports unhealthy, so load balancers stop
// routing to a replica that has lost its broker.
type Handler struct {
	system string
	log    *slog.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewHandler creates a health handler for the named system.
func NewHandler(system string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		system:   system,
		log:      log.With("component", "health"),
		checkers: make(map[string]Checker),
	}
}

// Register adds a named component check. Registering the same name again
// replaces the previous checker.
func (h *Handler) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// RegisterFunc is a convenience wrapper around Register for plain functions.
func (h *Handler) RegisterFunc(name string, fn func() Status) {
	h.Register(name, CheckerFunc(fn))
}

// Check polls every registered checker and aggregates the results.
func (h *Handler) Check() Status {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = h.checkers[name]
	}
	h.mu.RUnlock()

	subStatuses := make([]Status, len(checkers))
	for i, checker := range checkers {
		status := checker.CheckHealth()
		status.Component = names[i]
		if status.Timestamp.IsZero() {
			status.Timestamp = time.Now()
		}
		subStatuses[i] = status
	}

	return Aggregate(h.system, subStatuses)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := h.Check()

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Warn("failed to write health response", "error", err)
	}
}
