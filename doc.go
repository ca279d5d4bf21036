// Package shopstream provides an asynchronous API gateway over a message
// broker, combining request/reply RPC with broker-driven real-time fan-out.
//
// # Philosophy: Asynchronous Boundary, Synchronous Surface
//
// ShopStream fronts backend services that are only reachable through a
// broker. Clients speak plain HTTP and WebSocket; internally every call is
// an asynchronous message exchange:
//
//   - REST requests become envelopes published to per-backend queues
//   - Replies return on a gateway-exclusive inbox, matched by token
//   - Catalog changes fan out to every gateway replica over pub/sub
//   - Each replica pushes events to its own WebSocket clients
//
// The gateway holds no domain state. User accounts, sessions, and the item
// catalog live behind the backend boundary; the gateway's job is
// correlation, timeout arbitration, and translation between HTTP semantics
// and broker semantics.
//
// # Architecture
//
// Request path (one replica shown):
//
//	client ──POST /items──► ┌─────────────┐
//	                        │   gateway   │  router + auth
//	                        └──────┬──────┘
//	                               │ RequestEnvelope
//	                               │ headers: Corr-Id, Reply-To
//	                               ▼
//	                     item_requests (work queue)
//	                               │ exactly one consumer
//	                               ▼
//	                        ┌─────────────┐
//	                        │ item worker │  handle → reply → ack
//	                        └──────┬──────┘
//	                               │ ReplyEnvelope to Reply-To inbox
//	                               ▼
//	                        ┌─────────────┐
//	                        │ correlator  │  token → waiting call
//	                        └─────────────┘
//
// Fan-out path (two replicas shown):
//
//	                      item_updates (pub/sub, no queue group)
//	                         ▲                    │
//	            publish      │           deliver  │  to every subscriber
//	        ┌────────────────┘          ┌─────────┴─────────┐
//	        │                           ▼                   ▼
//	  ┌──────────┐               ┌──────────┐         ┌──────────┐
//	  │ replica A│               │ replica A│         │ replica B│
//	  │  router  │               │   hub    │         │   hub    │
//	  └──────────┘               └────┬─────┘         └────┬─────┘
//	                                  ▼                    ▼
//	                             ws clients           ws clients
//
// The publishing replica receives its own event through the same
// subscription, so its clients and every other replica's clients see the
// same stream.
//
// # Packages
//
// Core path:
//   - protocol: wire envelopes (RequestEnvelope, ReplyEnvelope, Event)
//   - rpc: correlation tokens, pending-reply map, call timeouts
//   - fanout: event publication and replica-wide subscription
//   - realtime: WebSocket hub, per-connection lifecycle and pushes
//   - gateway: HTTP router, auth middleware, error translation
//   - worker: queue consumer harness and the reference backends
//
// Infrastructure:
//   - natsclient: broker connection management, JetStream provisioning
//   - config: file + environment configuration with schema validation
//   - errors: classified errors (transient, invalid, fatal)
//   - health: component health statuses and the /healthz handler
//   - metric: Prometheus registry and component collectors
//   - pkg/retry: bounded retry with backoff
//   - pkg/security, pkg/tlsutil: TLS configuration and loaders
//   - pkg/timestamp: Unix-millisecond timestamps
//
// Binaries:
//   - cmd/shopstream: the gateway
//   - cmd/shopworker: the reference backend worker
//
// # Delivery Semantics
//
// Requests ride a work-queue stream: persisted, delivered to exactly one
// worker of the target backend, acknowledged only after the reply is
// published. A worker crash redelivers; handlers own idempotency.
//
// Replies and events are fire-and-forget. A reply that arrives after its
// call timed out is dropped silently; an event published while a replica
// is detached is missed by that replica's clients. The catalog endpoint
// remains the source of truth; push traffic is a freshness optimization.
//
// # Usage
//
// Assemble a gateway replica:
//
//	nc, _ := natsclient.NewClient("nats://localhost:4222")
//	nc.Connect(ctx)
//
//	corr, _ := rpc.NewCorrelator(nc, "item", logger, registry)
//	items, _ := rpc.NewClient(nc, corr, "item_requests")
//
//	bus := fanout.NewBus(nc, "item_updates", logger, registry)
//	hub := realtime.NewHub(realtime.DefaultConfig(), authorize, logger, registry)
//	bus.Subscribe(ctx, hub.Broadcast)
//
//	router, _ := gateway.NewRouter(gateway.Dependencies{
//	    Users: users, Items: items, Events: bus, Realtime: hub,
//	})
//
// Run a backend worker:
//
//	w, _ := worker.New(nc, worker.DefaultItemConfig(), logger, registry)
//	w.Handle("create_item", store.CreateItem)
//	w.Run(ctx)
//
// # Design Principles
//
// Correlation over connection:
//   - A call's identity is its token, not its transport
//   - Timeout and late reply resolve by removing the same map entry
//
// Replica symmetry:
//   - Every replica subscribes to every event
//   - No shared connection state, no replica-to-replica traffic
//
// Testability:
//   - Explicit dependencies (no globals)
//   - Narrow transport interfaces with fakes for unit tests
//   - Integration tests against a real broker via testcontainers
package shopstream
