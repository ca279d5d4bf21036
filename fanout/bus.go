package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/metric"
	"github.com/c360/shopstream/natsclient"
	"github.com/c360/shopstream/protocol"
)

// transport is the slice of the broker client the bus depends on
type transport interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Bus is the shared pub/sub channel for state-change events. Every gateway
// replica subscribes; whichever replica produces an event publishes it once,
// and all replicas (the producer included) receive it. Events are transient:
// nothing is stored for replicas that are down or clients that connect
// later.
type Bus struct {
	transport transport
	subject   string
	log       *slog.Logger
	metrics   *Metrics
}

// NewBus binds a bus to a subject. An empty subject selects the default
// item_updates channel.
func NewBus(nc *natsclient.Client, subject string, log *slog.Logger, registry *metric.MetricsRegistry) *Bus {
	if subject == "" {
		subject = protocol.SubjectItemUpdates
	}
	if log == nil {
		log = slog.Default()
	}

	return &Bus{
		transport: nc,
		subject:   subject,
		log:       log.With("component", "fanout", "subject", subject),
		metrics:   newMetrics(registry),
	}
}

// Subject returns the channel this bus publishes and subscribes on
func (b *Bus) Subject() string {
	return b.subject
}

// Publish sends one event to every currently-subscribed replica
func (b *Bus) Publish(ctx context.Context, event protocol.Event) error {
	data, err := event.Encode()
	if err != nil {
		return errors.WrapInvalid(err, "Bus", "Publish", "encode event")
	}

	if err := b.transport.Publish(ctx, b.subject, data); err != nil {
		return errors.WrapTransient(err, "Bus", "Publish",
			fmt.Sprintf("publish %s to %s", event.Type, b.subject))
	}

	b.log.Debug("event published", "type", event.Type)
	if b.metrics != nil {
		b.metrics.published.WithLabelValues(event.Type).Inc()
	}
	return nil
}

// Subscribe registers a handler invoked once per received event. No queue
// group: every subscriber sees every event. Malformed events are dropped and
// counted, never surfaced as handler invocations.
func (b *Bus) Subscribe(ctx context.Context, handler func(context.Context, protocol.Event)) error {
	err := b.transport.Subscribe(ctx, b.subject, func(msgCtx context.Context, data []byte) {
		event, err := protocol.DecodeEvent(data)
		if err != nil {
			b.log.Warn("malformed event dropped", "error", err)
			if b.metrics != nil {
				b.metrics.dropped.Inc()
			}
			return
		}

		if b.metrics != nil {
			b.metrics.received.WithLabelValues(event.Type).Inc()
		}
		handler(msgCtx, event)
	})
	if err != nil {
		return errors.WrapTransient(err, "Bus", "Subscribe",
			fmt.Sprintf("subscribe to %s", b.subject))
	}

	b.log.Debug("subscribed to fan-out channel")
	return nil
}
