package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/natsclient"
	"github.com/c360/shopstream/protocol"
)

// DefaultCallTimeout bounds a call when no option overrides it
const DefaultCallTimeout = 5 * time.Second

// streamPublisher is the slice of the broker client Call depends on
type streamPublisher interface {
	PublishToStream(ctx context.Context, msg *nats.Msg) error
}

// Client issues request/reply calls against one backend queue through its
// correlator. Safe for concurrent use; concurrent calls are fully
// independent.
type Client struct {
	publisher  streamPublisher
	correlator *Correlator
	queue      string
	timeout    time.Duration
	log        *slog.Logger
}

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client) error

// WithCallTimeout overrides the default per-call timeout
func WithCallTimeout(d time.Duration) ClientOption {
	return func(m *Client) error {
		if d <= 0 {
			return fmt.Errorf("call timeout must be positive, got %v", d)
		}
		m.timeout = d
		return nil
	}
}

// NewClient binds a client to one backend queue and its correlator
func NewClient(nc *natsclient.Client, correlator *Correlator, queue string, opts ...ClientOption) (*Client, error) {
	if correlator == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "correlator required")
	}
	if queue == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "queue required")
	}

	m := &Client{
		publisher:  nc,
		correlator: correlator,
		queue:      queue,
		timeout:    DefaultCallTimeout,
		log:        correlator.log.With("queue", queue),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	return m, nil
}

// Queue returns the backend queue this client publishes to
func (m *Client) Queue() string {
	return m.queue
}

// Timeout returns the per-call timeout
func (m *Client) Timeout() time.Duration {
	return m.timeout
}

// Call sends one command to the backend queue and waits for its reply.
//
// Exactly one of {reply, timeout} resolves each call. The reply envelope is
// returned whether the backend reports success or a domain error; domain
// errors are data for the caller to interpret, not Go errors. Go errors are
// reserved for transport conditions: publish failure, timeout, cancelled
// context. A reply that loses the race against the timer is dropped by the
// correlator's unknown-token path.
func (m *Client) Call(ctx context.Context, command string, payload any) (*protocol.ReplyEnvelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Client", "Call", "marshal payload")
		}
		raw = data
	}

	req := &protocol.RequestEnvelope{Command: command, Payload: raw}
	body, err := req.Encode()
	if err != nil {
		return nil, errors.WrapInvalid(err, "Client", "Call", "encode request")
	}

	token := uuid.NewString()
	waiter, err := m.correlator.register(token)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Call", "register waiter")
	}

	msg := nats.NewMsg(m.queue)
	msg.Header.Set(protocol.HeaderCorrelationID, token)
	msg.Header.Set(protocol.HeaderReplyTo, m.correlator.Inbox())
	msg.Data = body

	start := time.Now()
	if err := m.publisher.PublishToStream(ctx, msg); err != nil {
		m.correlator.remove(token)
		m.observe(command, "publish_error", start)
		return nil, errors.WrapTransient(err, "Client", "Call",
			fmt.Sprintf("publish %s to %s", command, m.queue))
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case reply := <-waiter:
		m.observe(command, reply.Status, start)
		return reply, nil

	case <-timer.C:
		if _, stillPending := m.correlator.remove(token); stillPending {
			m.log.Warn("call timed out", "command", command, "token", token, "timeout", m.timeout)
			m.observe(command, "timeout", start)
			return nil, errors.WrapTransient(errors.ErrCallTimeout, "Client", "Call",
				fmt.Sprintf("%s on %s after %v", command, m.queue, m.timeout))
		}
		// The reply won the removal race; it is already buffered
		reply := <-waiter
		m.observe(command, reply.Status, start)
		return reply, nil

	case <-ctx.Done():
		if _, stillPending := m.correlator.remove(token); stillPending {
			m.observe(command, "cancelled", start)
			return nil, errors.WrapTransient(ctx.Err(), "Client", "Call",
				fmt.Sprintf("%s on %s cancelled", command, m.queue))
		}
		reply := <-waiter
		m.observe(command, reply.Status, start)
		return reply, nil
	}
}

func (m *Client) observe(command, status string, start time.Time) {
	if m.correlator.metrics == nil {
		return
	}
	m.correlator.metrics.callsTotal.WithLabelValues(status).Inc()
	m.correlator.metrics.callDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
