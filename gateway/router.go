package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/metric"
	"github.com/c360/shopstream/protocol"
)

// Caller dispatches one command to a backend and waits for its reply.
// *rpc.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, command string, payload any) (*protocol.ReplyEnvelope, error)
}

// EventPublisher publishes catalog events on the fan-out channel.
// *fanout.Bus satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event protocol.Event) error
}

// Dependencies wires the router to the rest of the gateway
type Dependencies struct {
	Users    Caller          // user backend (signup, login, verify_token)
	Items    Caller          // item backend (item CRUD)
	Events   EventPublisher  // fan-out bus; nil disables event publication
	Realtime http.Handler    // WebSocket hub; nil disables /ws
	Logger   *slog.Logger
	Registry *metric.MetricsRegistry

	// MaxBodyBytes caps request bodies; 0 means the 1MB default
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 1024 * 1024

// Router translates HTTP requests into backend commands and maps replies
// and failures back onto HTTP semantics
type Router struct {
	users    Caller
	items    Caller
	events   EventPublisher
	realtime http.Handler
	log      *slog.Logger
	metrics  *Metrics
	maxBody  int64
}

// NewRouter creates a router over the given backends
func NewRouter(deps Dependencies) (*Router, error) {
	if deps.Users == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Router", "NewRouter",
			"user backend caller is required")
	}
	if deps.Items == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Router", "NewRouter",
			"item backend caller is required")
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	return &Router{
		users:    deps.Users,
		items:    deps.Items,
		events:   deps.Events,
		realtime: deps.Realtime,
		log:      log.With("component", "gateway"),
		metrics:  newMetrics(deps.Registry),
		maxBody:  maxBody,
	}, nil
}

// RegisterHandlers attaches every route to the mux. Health and metrics
// endpoints are wired by the caller alongside these.
func (rt *Router) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /signup", rt.instrument("signup", rt.handleSignup))
	mux.HandleFunc("POST /login", rt.instrument("login", rt.handleLogin))

	mux.HandleFunc("GET /items", rt.instrument("list_items", rt.requireAuth(rt.handleListItems)))
	mux.HandleFunc("POST /items", rt.instrument("create_item", rt.requireAuth(rt.handleCreateItem)))
	mux.HandleFunc("GET /items/{id}", rt.instrument("get_item", rt.requireAuth(rt.handleGetItem)))
	mux.HandleFunc("PUT /items/{id}", rt.instrument("update_item", rt.requireAuth(rt.handleUpdateItem)))
	mux.HandleFunc("DELETE /items/{id}", rt.instrument("delete_item", rt.requireAuth(rt.handleDeleteItem)))

	if rt.realtime != nil {
		mux.Handle("GET /ws", rt.realtime)
	}
}

func (rt *Router) handleSignup(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readBody(w, r)
	if !ok {
		return
	}

	reply, err := rt.users.Call(r.Context(), "signup", json.RawMessage(body))
	if err != nil {
		rt.writeCallError(w, r, err)
		return
	}
	if reply.IsError() {
		rt.writeDomainError(w, reply.Message)
		return
	}

	rt.writeData(w, http.StatusCreated, reply.Data)
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readBody(w, r)
	if !ok {
		return
	}

	reply, err := rt.users.Call(r.Context(), "login", json.RawMessage(body))
	if err != nil {
		rt.writeCallError(w, r, err)
		return
	}
	if reply.IsError() {
		rt.writeDomainError(w, reply.Message)
		return
	}

	rt.writeData(w, http.StatusOK, reply.Data)
}

func (rt *Router) handleListItems(w http.ResponseWriter, r *http.Request) {
	reply, err := rt.items.Call(r.Context(), "list_items", nil)
	if err != nil {
		rt.writeCallError(w, r, err)
		return
	}
	if reply.IsError() {
		rt.writeDomainError(w, reply.Message)
		return
	}

	rt.writeData(w, http.StatusOK, reply.Data)
}

func (rt *Router) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readBody(w, r)
	if !ok {
		return
	}

	reply, err := rt.items.Call(r.Context(), "create_item", json.RawMessage(body))
	if err != nil {
		rt.writeCallError(w, r, err)
		return
	}
	if reply.IsError() {
		rt.writeDomainError(w, reply.Message)
		return
	}

	rt.publishEvent(r.Context(), protocol.EventItemAdded, reply.Data)
	rt.writeData(w, http.StatusCreated, reply.Data)
}

func (rt *Router) handleGetItem(w http.ResponseWriter, r *http.Request) {
	reply, err := rt.items.Call(r.Context(), "get_item",
		map[string]string{"id": r.PathValue("id")})
	if err != nil {
		rt.writeCallError(w, r, err)
		return
	}
	if reply.IsError() {
		rt.writeDomainError(w, reply.Message)
		return
	}

	rt.writeData(w, http.StatusOK, reply.Data)
}

func (rt *Router) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readBody(w, r)
	if !ok {
		return
	}

	// The id comes from the path; body fields ride along unchanged
	var fields map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			rt.writeErrorBody(w, http.StatusBadRequest, "request body must be a JSON object")
			return
		}
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["id"] = r.PathValue("id")

	reply, err := rt.items.Call(r.Context(), "update_item", fields)
	if err != nil {
		rt.writeCallError(w, r, err)
		return
	}
	if reply.IsError() {
		rt.writeDomainError(w, reply.Message)
		return
	}

	rt.publishEvent(r.Context(), protocol.EventItemUpdated, reply.Data)
	rt.writeData(w, http.StatusOK, reply.Data)
}

func (rt *Router) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	reply, err := rt.items.Call(r.Context(), "delete_item",
		map[string]string{"id": r.PathValue("id")})
	if err != nil {
		rt.writeCallError(w, r, err)
		return
	}
	if reply.IsError() {
		rt.writeDomainError(w, reply.Message)
		return
	}

	rt.publishEvent(r.Context(), protocol.EventItemDeleted, reply.Data)
	w.WriteHeader(http.StatusNoContent)
}

// publishEvent pushes a catalog change onto the fan-out channel. The HTTP
// response does not depend on it: a lost event only costs real-time
// freshness, the item operation itself already succeeded.
func (rt *Router) publishEvent(ctx context.Context, eventType string, payload json.RawMessage) {
	if rt.events == nil {
		return
	}

	event := protocol.Event{Type: eventType, Payload: payload}
	if err := rt.events.Publish(ctx, event); err != nil {
		rt.log.Error("event publish failed", "type", eventType, "error", err)
		if rt.metrics != nil {
			rt.metrics.publishFailures.Inc()
		}
	}
}
