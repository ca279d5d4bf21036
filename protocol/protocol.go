// Package protocol defines the wire envelopes exchanged between the gateway,
// backend workers, and real-time clients.
package protocol

import (
	"encoding/json"

	"github.com/c360/shopstream/errors"
)

// Reply status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Event types published on the fan-out channel.
const (
	EventItemAdded   = "item_added"
	EventItemUpdated = "item_updated"
	EventItemDeleted = "item_deleted"
)

// Message header names carried on broker messages. The reply destination
// travels in a header because stream delivery does not preserve the broker's
// native reply field.
const (
	HeaderCorrelationID = "Corr-Id"
	HeaderReplyTo       = "Reply-To"
)

// Default subject names. All are configurable; these are the values the
// backends and gateway agree on out of the box.
const (
	SubjectUserRequests = "user_requests"
	SubjectItemRequests = "item_requests"
	SubjectItemUpdates  = "item_updates"
)

// RequestEnvelope is the body of a request published to a backend queue.
// Payload is opaque to the gateway and is preserved byte for byte.
type RequestEnvelope struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the envelope carries a command.
func (e *RequestEnvelope) Validate() error {
	if e.Command == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "RequestEnvelope", "Validate", "command cannot be empty")
	}
	return nil
}

// Encode serializes the envelope to its JSON wire form.
func (e *RequestEnvelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "RequestEnvelope", "Encode", "marshal request")
	}
	return data, nil
}

// DecodeRequest parses a request envelope from its JSON wire form.
func DecodeRequest(data []byte) (*RequestEnvelope, error) {
	var e RequestEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.WrapInvalid(err, "RequestEnvelope", "Decode", "unmarshal request")
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// ReplyEnvelope is the body of a reply sent to a caller's reply destination.
// Status is always "success" or "error". Data is present on success, Message
// on error; neither is required to be absent on the other.
type ReplyEnvelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// SuccessReply builds a success envelope with the given data. A nil data
// value produces an envelope without a data field.
func SuccessReply(data any) (*ReplyEnvelope, error) {
	reply := &ReplyEnvelope{Status: StatusSuccess}
	if data == nil {
		return reply, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.WrapInvalid(err, "ReplyEnvelope", "SuccessReply", "marshal data")
	}
	reply.Data = raw
	return reply, nil
}

// ErrorReply builds an error envelope with a human-readable message.
func ErrorReply(message string) *ReplyEnvelope {
	return &ReplyEnvelope{Status: StatusError, Message: message}
}

// IsError reports whether the reply carries a domain error.
func (r *ReplyEnvelope) IsError() bool {
	return r.Status == StatusError
}

// Validate checks the envelope carries a known status.
func (r *ReplyEnvelope) Validate() error {
	if r.Status != StatusSuccess && r.Status != StatusError {
		return errors.WrapInvalid(errors.ErrInvalidData, "ReplyEnvelope", "Validate", "status must be success or error")
	}
	return nil
}

// Encode serializes the envelope to its JSON wire form.
func (r *ReplyEnvelope) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.WrapInvalid(err, "ReplyEnvelope", "Encode", "marshal reply")
	}
	return data, nil
}

// DecodeData unmarshals the success data into v.
func (r *ReplyEnvelope) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "ReplyEnvelope", "DecodeData", "reply has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return errors.WrapInvalid(err, "ReplyEnvelope", "DecodeData", "unmarshal data")
	}
	return nil
}

// DecodeReply parses a reply envelope from its JSON wire form.
func DecodeReply(data []byte) (*ReplyEnvelope, error) {
	var r ReplyEnvelope
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.WrapInvalid(err, "ReplyEnvelope", "Decode", "unmarshal reply")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Event is a state-change notification published on the fan-out channel and
// pushed verbatim to real-time clients. Events are transient: subscribers
// only see events published while they are subscribed.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event of the given type with a JSON-encoded payload.
func NewEvent(eventType string, payload any) (Event, error) {
	e := Event{Type: eventType}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	if payload == nil {
		return e, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errors.WrapInvalid(err, "Event", "NewEvent", "marshal payload")
	}
	e.Payload = raw
	return e, nil
}

// Validate checks the event carries a known type.
func (e Event) Validate() error {
	switch e.Type {
	case EventItemAdded, EventItemUpdated, EventItemDeleted:
		return nil
	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Event", "Validate", "unknown event type "+e.Type)
	}
}

// Encode serializes the event to its JSON wire form.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Event", "Encode", "marshal event")
	}
	return data, nil
}

// DecodeData unmarshals the event payload into v.
func (e Event) DecodeData(v any) error {
	if len(e.Payload) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Event", "DecodeData", "event has no payload")
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.WrapInvalid(err, "Event", "DecodeData", "unmarshal payload")
	}
	return nil
}

// DecodeEvent parses an event from its JSON wire form.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, errors.WrapInvalid(err, "Event", "Decode", "unmarshal event")
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
