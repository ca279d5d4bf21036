package natsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/pkg/retry"
)

// JetStream returns the JetStream context
func (m *Client) JetStream() (jetstream.JetStream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.js == nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("JetStream not initialized"),
			"Client", "JetStream", "get JetStream context")
	}

	return m.js, nil
}

// EnsureRequestStream creates or updates a work-queue stream capturing the
// given subjects. Work-queue retention means each request is delivered to
// exactly one consumer and removed once acknowledged. Provisioning is
// retried since it commonly races replica startup.
func (m *Client) EnsureRequestStream(ctx context.Context, name string, subjects []string) error {
	if m.Status() != StatusConnected {
		return ErrNotConnected
	}

	js, err := m.JetStream()
	if err != nil {
		return err
	}

	cfg := jetstream.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	}

	err = retry.Do(ctx, retry.Provision(), func() error {
		_, err := js.CreateOrUpdateStream(ctx, cfg)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "Client", "EnsureRequestStream", fmt.Sprintf("provision stream %s", name))
	}

	m.logger.Info("request stream ready", "stream", name, "subjects", subjects)
	return nil
}

// PublishToStream publishes a full message to a JetStream-captured subject.
// Headers are preserved, which is how correlation tokens and reply
// destinations travel with a request.
func (m *Client) PublishToStream(ctx context.Context, msg *nats.Msg) error {
	if m.Status() != StatusConnected {
		return ErrNotConnected
	}

	js, err := m.JetStream()
	if err != nil {
		return err
	}

	if _, err := js.PublishMsg(ctx, msg); err != nil {
		return err
	}

	return nil
}

// ConsumeStream creates a durable consumer on a stream and starts delivering
// messages to the handler. Acknowledgement is explicit and owned by the
// handler: ack after the work is done, term to discard a message that can
// never succeed, or neither to force redelivery.
func (m *Client) ConsumeStream(ctx context.Context, streamName, durable, subject string, handler func(jetstream.Msg)) error {
	if m.Status() != StatusConnected {
		return ErrNotConnected
	}

	js, err := m.JetStream()
	if err != nil {
		return err
	}

	// Check if client is closing to prevent new consumers during shutdown
	if m.closed.Load() {
		return errors.WrapInvalid(
			fmt.Errorf("client is closed"),
			"Client", "ConsumeStream", "check client state")
	}

	consumerCfg := jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
	}

	var consumer jetstream.Consumer
	err = retry.Do(ctx, retry.Provision(), func() error {
		var err error
		consumer, err = js.CreateOrUpdateConsumer(ctx, streamName, consumerCfg)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "Client", "ConsumeStream", fmt.Sprintf("provision consumer %s", durable))
	}

	consumeContext, err := consumer.Consume(handler)
	if err != nil {
		return errors.Wrap(err, "Client", "ConsumeStream", "start consuming")
	}

	// Store the consume context for lifecycle management with race protection
	m.consumersMu.Lock()
	defer m.consumersMu.Unlock()

	// Double-check client isn't closing while we have the lock
	if m.closed.Load() {
		// Client is closing, stop the consumer we just created
		consumeContext.Stop()
		return errors.WrapInvalid(
			fmt.Errorf("client is closing"),
			"Client", "ConsumeStream", "check client state during consumer registration")
	}

	if m.consumers == nil {
		m.consumers = make(map[string]jetstream.ConsumeContext)
	}
	consumerKey := fmt.Sprintf("%s:%s", streamName, durable)

	// Stop any existing consumer for this key
	if existingConsumer, exists := m.consumers[consumerKey]; exists {
		existingConsumer.Stop()
		m.logger.Debug("replaced existing consumer", "consumer", consumerKey)
	}

	m.consumers[consumerKey] = consumeContext

	return nil
}

// StopConsumer stops a running consumer by stream and durable name
func (m *Client) StopConsumer(streamName, durable string) {
	m.consumersMu.Lock()
	defer m.consumersMu.Unlock()

	consumerKey := fmt.Sprintf("%s:%s", streamName, durable)
	if consumeContext, exists := m.consumers[consumerKey]; exists {
		consumeContext.Stop()
		delete(m.consumers, consumerKey)
		m.logger.Debug("stopped consumer", "consumer", consumerKey)
	}
}
