package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/metric"
	"github.com/c360/shopstream/protocol"
)

// AuthorizeFunc validates a client token before the connection is upgraded.
// The hub holds no auth policy of its own; the gateway wires this to a
// verify_token call against the user backend. A transient error (broker
// down, call timeout) is reported as service unavailability, anything else
// as an authorization failure.
type AuthorizeFunc func(ctx context.Context, token string) error

// Config holds tunables for the hub
type Config struct {
	PingInterval time.Duration // how often to ping idle connections
	PongWait     time.Duration // read deadline; a silent client is dropped after this
	WriteTimeout time.Duration // per-push write deadline
}

// DefaultConfig returns the hub defaults
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

// client holds one live WebSocket connection
type client struct {
	conn        *websocket.Conn
	connectedAt time.Time
	lastPong    atomic.Value // stores time.Time
	closed      atomic.Bool
	closeOnce   sync.Once
	writeMu     sync.Mutex // gorilla/websocket forbids concurrent writes
}

// Hub is the registry of this replica's live realtime connections. It is
// purely local: no connection state is shared across replicas, which is why
// every replica subscribes to the fan-out bus and rebroadcasts to its own
// clients. Delivery is best effort per connection; a slow or broken client
// is unregistered on its next failed push and never affects the others.
type Hub struct {
	cfg       Config
	authorize AuthorizeFunc
	log       *slog.Logger
	metrics   *Metrics
	upgrader  websocket.Upgrader

	clients   map[*websocket.Conn]*client
	clientsMu sync.RWMutex

	shutdown  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewHub creates a hub and starts its maintenance loop
func NewHub(cfg Config, authorize AuthorizeFunc, log *slog.Logger, registry *metric.MetricsRegistry) *Hub {
	if log == nil {
		log = slog.Default()
	}

	h := &Hub{
		cfg:       cfg.withDefaults(),
		authorize: authorize,
		log:       log.With("component", "realtime"),
		metrics:   newMetrics(registry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Allow connections from any origin for development
				// In production, this should be more restrictive
				return true
			},
		},
		clients:  make(map[*websocket.Conn]*client),
		shutdown: make(chan struct{}),
	}

	h.wg.Add(1)
	go h.maintainClients()

	return h
}

// Len returns the number of currently registered connections
func (h *Hub) Len() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeHTTP authenticates, upgrades, and registers one realtime client.
// A missing token is rejected outright without consulting the backend.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
		return
	}

	if h.authorize != nil {
		if err := h.authorize(r.Context(), token); err != nil {
			if errors.IsTransient(err) {
				h.log.Warn("authorization unavailable", "error", err)
				http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.log.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		if h.metrics != nil {
			h.metrics.errorsTotal.WithLabelValues("connection_upgrade").Inc()
		}
		return
	}

	c := &client{
		conn:        conn,
		connectedAt: time.Now(),
	}
	c.lastPong.Store(time.Now())

	h.register(c)

	h.wg.Add(1)
	go h.readLoop(c)
}

// extractToken pulls the client token from the Authorization header or the
// token query parameter. Browsers cannot set headers on WebSocket dials, so
// the query form is the realistic path for /ws.
func extractToken(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if auth := r.Header.Get("Authorization"); len(auth) > len(bearerPrefix) && auth[:len(bearerPrefix)] == bearerPrefix {
		return auth[len(bearerPrefix):]
	}
	return r.URL.Query().Get("token")
}

// register adds a connection to the registry
func (h *Hub) register(c *client) {
	h.clientsMu.Lock()
	h.clients[c.conn] = c
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.log.Debug("client registered", "clients", count)
	if h.metrics != nil {
		h.metrics.connectionTotal.Inc()
		h.metrics.clientsConnected.Set(float64(count))
	}
}

// unregister removes a connection with exactly-once cleanup
func (h *Hub) unregister(c *client, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		h.clientsMu.Lock()
		delete(h.clients, c.conn)
		count := len(h.clients)
		h.clientsMu.Unlock()

		if h.metrics != nil {
			h.metrics.disconnectionTotal.WithLabelValues(reason).Inc()
			h.metrics.clientsConnected.Set(float64(count))
		}

		_ = c.conn.Close()
		h.log.Debug("client unregistered", "reason", reason, "clients", count,
			"connected", time.Since(c.connectedAt).Round(time.Second))
	})
}

// readLoop drains one client's inbound frames. Realtime clients never send
// application data; the loop exists to notice disconnects and keep the pong
// handler serviced.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.unregister(c, "closed")

	c.conn.SetReadLimit(512)
	c.conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now())
		_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		return nil
	})

	for {
		select {
		case <-h.shutdown:
			return
		default:
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		// Inbound data frames are ignored
	}
}

// Broadcast pushes one event to every registered connection. Its signature
// matches the fan-out bus handler so main can wire bus.Subscribe(ctx,
// hub.Broadcast) directly. Push failures unregister the failing connection
// and are never surfaced to the publisher.
func (h *Hub) Broadcast(_ context.Context, event protocol.Event) {
	data, err := event.Encode()
	if err != nil {
		h.log.Warn("unbroadcastable event", "type", event.Type, "error", err)
		if h.metrics != nil {
			h.metrics.errorsTotal.WithLabelValues("event_encode").Inc()
		}
		return
	}

	// Snapshot so a slow send never holds the registry lock
	h.clientsMu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if !c.closed.Load() {
			snapshot = append(snapshot, c)
		}
	}
	h.clientsMu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range snapshot {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			if err := h.send(c, data); err != nil {
				h.unregister(c, "send_failed")
				if h.metrics != nil {
					h.metrics.errorsTotal.WithLabelValues("client_send").Inc()
				}
			}
		}(c)
	}
	wg.Wait()

	if h.metrics != nil {
		h.metrics.eventsSent.WithLabelValues(event.Type).Add(float64(len(snapshot)))
	}
	h.log.Debug("event broadcast", "type", event.Type, "clients", len(snapshot))
}

// send writes one frame to one client under its write mutex
func (h *Hub) send(c *client, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// maintainClients pings registered connections so dead ones are noticed
// even when no events flow
func (h *Hub) maintainClients() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.shutdown:
			return
		case <-ticker.C:
			h.pingClients()
		}
	}
}

func (h *Hub) pingClients() {
	h.clientsMu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if !c.closed.Load() {
			snapshot = append(snapshot, c)
		}
	}
	h.clientsMu.RUnlock()

	for _, c := range snapshot {
		// A wedged client can keep accepting writes while its pongs stop;
		// the pong timestamp catches what the write path cannot.
		if last, ok := c.lastPong.Load().(time.Time); ok && time.Since(last) > h.cfg.PongWait {
			h.unregister(c, "pong_timeout")
			continue
		}

		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()

		if err != nil {
			h.unregister(c, "ping_failed")
		}
	}
}

// Close stops the maintenance loop and closes every connection
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		close(h.shutdown)

		h.clientsMu.RLock()
		snapshot := make([]*client, 0, len(h.clients))
		for _, c := range h.clients {
			snapshot = append(snapshot, c)
		}
		h.clientsMu.RUnlock()

		for _, c := range snapshot {
			h.unregister(c, "shutdown")
		}

		h.wg.Wait()
	})
	return nil
}
