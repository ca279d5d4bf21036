package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/metric"
	"github.com/c360/shopstream/natsclient"
	"github.com/c360/shopstream/protocol"
)

// HandlerFunc processes one command. The payload is the request envelope's
// payload verbatim; the returned raw message becomes the reply's data field.
// A returned error becomes a status=error reply with the error text, so
// handlers should return messages fit for clients.
//
// Delivery is at least once: a crash between handling and acknowledgement
// redelivers the request, so a command may execute more than once. Handlers
// own idempotency where it matters.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Config identifies the queue a worker serves
type Config struct {
	Stream   string   // work-queue stream capturing all request queues
	Subjects []string // every subject the stream captures
	Queue    string   // the subject this worker consumes
	Durable  string   // durable consumer name shared by this backend's replicas
}

// DefaultUserConfig returns the stock configuration for a user backend
func DefaultUserConfig() Config {
	return Config{
		Stream:   "rpc_requests",
		Subjects: []string{protocol.SubjectUserRequests, protocol.SubjectItemRequests},
		Queue:    protocol.SubjectUserRequests,
		Durable:  "user-workers",
	}
}

// DefaultItemConfig returns the stock configuration for an item backend
func DefaultItemConfig() Config {
	return Config{
		Stream:   "rpc_requests",
		Subjects: []string{protocol.SubjectUserRequests, protocol.SubjectItemRequests},
		Queue:    protocol.SubjectItemRequests,
		Durable:  "item-workers",
	}
}

func (c Config) validate() error {
	if c.Stream == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Worker", "validate", "stream name cannot be empty")
	}
	if c.Queue == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Worker", "validate", "queue subject cannot be empty")
	}
	if c.Durable == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Worker", "validate", "durable name cannot be empty")
	}
	return nil
}

// transport is the slice of the NATS client the worker uses. Tests swap in
// a fake; production always passes *natsclient.Client.
type transport interface {
	EnsureRequestStream(ctx context.Context, name string, subjects []string) error
	ConsumeStream(ctx context.Context, streamName, durable, subject string, handler func(jetstream.Msg)) error
	StopConsumer(streamName, durable string)
	PublishMsg(ctx context.Context, msg *nats.Msg) error
}

// handleTimeout bounds one command's execution; it matches the consumer's
// ack wait so a stuck handler surfaces as redelivery, not silence.
const handleTimeout = 30 * time.Second

// Worker consumes one request queue, dispatches commands to registered
// handlers, and publishes the reply to each request's reply destination.
// Register every handler before calling Run.
type Worker struct {
	nc       transport
	cfg      Config
	log      *slog.Logger
	metrics  *Metrics
	handlers map[string]HandlerFunc

	running atomic.Bool
	baseCtx context.Context
}

// New creates a worker for one backend queue
func New(nc *natsclient.Client, cfg Config, log *slog.Logger, registry *metric.MetricsRegistry) (*Worker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		nc:       nc,
		cfg:      cfg,
		log:      log.With("component", "worker", "queue", cfg.Queue),
		metrics:  newMetrics(registry, cfg.Queue),
		handlers: make(map[string]HandlerFunc),
	}, nil
}

// Handle registers the handler for a command. Not safe to call after Run.
func (w *Worker) Handle(command string, fn HandlerFunc) {
	w.handlers[command] = fn
}

// Queue returns the subject this worker consumes
func (w *Worker) Queue() string {
	return w.cfg.Queue
}

// Run provisions the work-queue stream and durable consumer, then consumes
// until ctx is cancelled. All replicas of a backend share the durable, so
// each request is handed to exactly one of them.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.handlers) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Worker", "Run", "no handlers registered")
	}
	if !w.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Worker", "Run", "worker already running")
	}
	defer w.running.Store(false)
	w.baseCtx = ctx

	if err := w.nc.EnsureRequestStream(ctx, w.cfg.Stream, w.cfg.Subjects); err != nil {
		return err
	}
	if err := w.nc.ConsumeStream(ctx, w.cfg.Stream, w.cfg.Durable, w.cfg.Queue, w.handleMessage); err != nil {
		return err
	}

	w.log.Info("worker running",
		"stream", w.cfg.Stream,
		"durable", w.cfg.Durable,
		"commands", len(w.handlers))

	<-ctx.Done()

	w.nc.StopConsumer(w.cfg.Stream, w.cfg.Durable)
	w.log.Info("worker stopped")
	return nil
}

// handleMessage processes one delivered request. Acknowledgement policy:
// a body that is not a request envelope is terminated (poison, never
// redelivered); a handled request is acked only after its reply is
// published, so a crash or publish failure before that point redelivers.
func (w *Worker) handleMessage(msg jetstream.Msg) {
	start := time.Now()

	req, err := protocol.DecodeRequest(msg.Data())
	if err != nil {
		w.log.Warn("terminating unparseable request", "error", err, "subject", msg.Subject())
		if w.metrics != nil {
			w.metrics.poisonTotal.Inc()
		}
		if err := msg.Term(); err != nil {
			w.log.Error("failed to terminate message", "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(w.baseCtx, handleTimeout)
	defer cancel()

	reply := w.dispatch(ctx, req)

	replyTo := msg.Headers().Get(protocol.HeaderReplyTo)
	if replyTo != "" {
		if err := w.publishReply(ctx, msg, replyTo, reply); err != nil {
			// No ack: redelivery gives the reply another chance
			w.log.Error("failed to publish reply, leaving request for redelivery",
				"error", err, "command", req.Command)
			if w.metrics != nil {
				w.metrics.replyFailures.Inc()
			}
			return
		}
	} else {
		w.log.Debug("request carries no reply destination", "command", req.Command)
	}

	if err := msg.Ack(); err != nil {
		w.log.Error("failed to ack request", "error", err, "command", req.Command)
	}

	if w.metrics != nil {
		status := reply.Status
		w.metrics.handledTotal.WithLabelValues(req.Command, status).Inc()
		w.metrics.handleDuration.WithLabelValues(req.Command).Observe(time.Since(start).Seconds())
	}
}

// dispatch runs the handler for one request, converting unknown commands,
// handler errors, and handler panics into error replies
func (w *Worker) dispatch(ctx context.Context, req *protocol.RequestEnvelope) (reply *protocol.ReplyEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("handler panic recovered", "command", req.Command, "panic", r)
			if w.metrics != nil {
				w.metrics.panicsTotal.Inc()
			}
			reply = protocol.ErrorReply(fmt.Sprintf("internal error handling %s", req.Command))
		}
	}()

	fn, ok := w.handlers[req.Command]
	if !ok {
		w.log.Warn("unknown command", "command", req.Command)
		return protocol.ErrorReply("unknown command: " + req.Command)
	}

	data, err := fn(ctx, req.Payload)
	if err != nil {
		return protocol.ErrorReply(err.Error())
	}

	reply, err = protocol.SuccessReply(data)
	if err != nil {
		return protocol.ErrorReply("internal error encoding reply")
	}
	return reply
}

func (w *Worker) publishReply(ctx context.Context, msg jetstream.Msg, replyTo string, reply *protocol.ReplyEnvelope) error {
	body, err := reply.Encode()
	if err != nil {
		return err
	}

	out := nats.NewMsg(replyTo)
	out.Data = body
	if token := msg.Headers().Get(protocol.HeaderCorrelationID); token != "" {
		out.Header.Set(protocol.HeaderCorrelationID, token)
	}
	return w.nc.PublishMsg(ctx, out)
}
