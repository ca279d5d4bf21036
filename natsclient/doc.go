// Package natsclient provides a managed NATS connection with bounded initial
// connect, automatic reconnection, and JetStream work-queue support for
// ShopStream services.
//
// The natsclient package wraps the standard NATS Go client with the
// connection lifecycle ShopStream processes need: a bounded-retry initial
// connect that fails fatally when the broker never comes up, NATS-managed
// reconnection once the connection is established, and proper context
// propagation throughout all operations. It serves as the transport
// foundation for the rpc, fanout, and worker packages.
//
// # Connection Contract
//
// Initial Connect: Connect makes a bounded number of attempts (default: 5)
// with a fixed delay between them (default: 2s). When the budget is
// exhausted, the returned error is classified fatal and the process must
// exit rather than begin serving. This keeps a misconfigured or brokerless
// deployment from running half-alive.
//
// Steady State: After a successful connect, disconnections are handled by
// the NATS client's own reconnect machinery (infinite by default).
// Operations during an outage fail with ErrNotConnected; callers surface
// those as transient errors rather than restarting the process.
//
// Connection Lifecycle: Disconnected → Connecting → Connected → Reconnecting
// → Connected. The client manages all transitions with configurable
// callbacks for state changes.
//
// # Basic Usage
//
// Creating and connecting to NATS:
//
//	client, err := natsclient.NewClient("nats://localhost:4222")
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	err = client.Connect(ctx)
//	if err != nil {
//	    return err // fatal: do not begin serving
//	}
//	defer client.Close(ctx)
//
//	// Publish a message
//	err = client.Publish(ctx, "subject.name", []byte("message data"))
//
//	// Subscribe to messages
//	err = client.Subscribe(ctx, "subject.*", func(msgCtx context.Context, data []byte) {
//	    // Handle message with context (30s timeout per message)
//	    fmt.Printf("Received: %s\n", string(data))
//	})
//
// SubscribeMsg delivers the full *nats.Msg when the handler needs headers,
// which is how reply correlation reads its token.
//
// # Advanced Configuration
//
// Creating client with options:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithConnectAttempts(5),
//	    natsclient.WithConnectBackoff(2*time.Second),
//	    natsclient.WithMaxReconnects(-1),  // Infinite reconnects once up
//	    natsclient.WithReconnectWait(2*time.Second),
//	    natsclient.WithDisconnectCallback(func(err error) {
//	        log.Printf("Disconnected: %v", err)
//	    }),
//	    natsclient.WithReconnectCallback(func() {
//	        log.Println("Reconnected successfully")
//	    }),
//	)
//
// # JetStream Operations
//
// Request queues are JetStream work-queue streams: each request is delivered
// to exactly one consumer and removed once acknowledged, so multiple backend
// replicas share a queue without duplication.
//
//	// Provision the request stream (create-or-update, safe across replicas)
//	err = client.EnsureRequestStream(ctx, "rpc_requests",
//	    []string{"user_requests", "item_requests"})
//
//	// Publish a request with headers preserved
//	msg := nats.NewMsg("user_requests")
//	msg.Header.Set("Corr-Id", token)
//	msg.Data = body
//	err = client.PublishToStream(ctx, msg)
//
//	// Consume with explicit acknowledgement owned by the handler
//	err = client.ConsumeStream(ctx, "rpc_requests", "user-workers",
//	    "user_requests", func(msg jetstream.Msg) {
//	        if err := process(msg.Data()); err != nil {
//	            msg.Term() // never retry a poison message
//	            return
//	        }
//	        msg.Ack()
//	    })
//
// # Metrics
//
// WithMetrics wires connection state, round-trip time, and reconnect counts
// into a metric.MetricsRegistry. The health monitor samples RTT at the
// configured interval (default: 10s, WithHealthInterval(0) disables it).
//
// # Shutdown
//
// Close drains the connection with a timeout, stops all JetStream consumers,
// unsubscribes core subscriptions, and clears credentials from memory. It is
// safe to call once; later calls return nil.
package natsclient
