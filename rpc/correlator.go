package rpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/metric"
	"github.com/c360/shopstream/natsclient"
	"github.com/c360/shopstream/protocol"
)

// Correlator owns one exclusive reply inbox and the pending-call map for a
// single backend queue. Workers address replies to that inbox carrying the
// correlation token they received with the request; the correlator matches
// each reply to its waiting call and delivers it. A reply whose token is
// unknown (the call already timed out, or a redelivery produced a duplicate)
// is dropped silently: that is the designed discard path, not an error.
type Correlator struct {
	backend string
	inbox   string
	log     *slog.Logger
	metrics *Metrics

	sub *nats.Subscription

	mu      sync.Mutex
	pending map[string]chan *protocol.ReplyEnvelope
	closed  bool
}

// NewCorrelator creates the reply inbox for one backend and starts consuming
// it for the lifetime of the process. The client must already be connected.
func NewCorrelator(nc *natsclient.Client, backend string, log *slog.Logger, registry *metric.MetricsRegistry) (*Correlator, error) {
	if log == nil {
		log = slog.Default()
	}

	c := &Correlator{
		backend: backend,
		inbox:   nc.NewInbox(),
		log:     log.With("component", "rpc", "backend", backend),
		metrics: newMetrics(registry, backend),
		pending: make(map[string]chan *protocol.ReplyEnvelope),
	}

	sub, err := nc.SubscribeMsg(context.Background(), c.inbox, c.handleReply)
	if err != nil {
		return nil, errors.WrapTransient(err, "Correlator", "NewCorrelator", "subscribe reply inbox")
	}
	c.sub = sub

	// The first call must not race the inbox subscription reaching the server
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := nc.Flush(flushCtx); err != nil {
		_ = sub.Unsubscribe()
		return nil, errors.WrapTransient(err, "Correlator", "NewCorrelator", "flush inbox subscription")
	}

	c.log.Debug("reply inbox ready", "inbox", c.inbox)
	return c, nil
}

// Backend returns the logical backend name this correlator serves
func (c *Correlator) Backend() string {
	return c.backend
}

// Inbox returns the exclusive reply destination workers must address
func (c *Correlator) Inbox() string {
	return c.inbox
}

// Pending returns the number of calls currently awaiting a reply
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops consuming the reply inbox. Calls still outstanding are left to
// their timers; new registrations are refused.
func (c *Correlator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			return errors.Wrap(err, "Correlator", "Close", "unsubscribe inbox")
		}
	}
	return nil
}

// register creates the waiter for a fresh token. The channel is buffered so
// the consume path never blocks on delivery.
func (c *Correlator) register(token string) (chan *protocol.ReplyEnvelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrShuttingDown
	}

	ch := make(chan *protocol.ReplyEnvelope, 1)
	c.pending[token] = ch
	if c.metrics != nil {
		c.metrics.pendingCalls.Set(float64(len(c.pending)))
	}
	return ch, nil
}

// remove deletes a waiter and reports whether it was still present. Exactly
// one of the consume path and the caller's timeout path wins this removal;
// the loser must not resolve the call.
func (c *Correlator) remove(token string) (chan *protocol.ReplyEnvelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
		if c.metrics != nil {
			c.metrics.pendingCalls.Set(float64(len(c.pending)))
		}
	}
	return ch, ok
}

// handleReply consumes one message from the reply inbox
func (c *Correlator) handleReply(_ context.Context, msg *nats.Msg) {
	token := msg.Header.Get(protocol.HeaderCorrelationID)
	if token == "" {
		c.drop("missing_token", "reply without correlation token")
		return
	}

	waiter, ok := c.remove(token)
	if !ok {
		// Late reply after timeout, or a duplicate delivery
		c.drop("unknown_token", "reply for unknown token", "token", token)
		return
	}

	reply, err := protocol.DecodeReply(msg.Data)
	if err != nil {
		// Resolve the waiter with a transport-shaped error reply rather
		// than leaving it to time out
		c.log.Warn("malformed reply body", "token", token, "error", err)
		reply = protocol.ErrorReply(MsgMalformedReply)
	}

	waiter <- reply
	if c.metrics != nil {
		c.metrics.repliesMatched.Inc()
	}
}

// MsgMalformedReply is the error message a call receives when the backend's
// reply could not be parsed.
const MsgMalformedReply = "malformed reply from backend"

func (c *Correlator) drop(reason, msg string, args ...any) {
	c.log.Debug(msg, args...)
	if c.metrics != nil {
		c.metrics.repliesDropped.WithLabelValues(reason).Inc()
	}
}
