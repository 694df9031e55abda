package event

import (
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
)

// Event is the envelope carried by a Bus. Payloads are encoded with an
// EventCodec so subscribers decode only the events they care about.
type Event struct {
	// ID is a unique identifier for this event instance
	ID string `json:"id"`

	// Type is a dotted event type, e.g. "clock.stopwatch.tick"
	Type string `json:"type"`

	// Source identifies the publishing component
	Source string `json:"source"`

	// Timestamp indicates when the event was created
	Timestamp time.Time `json:"timestamp"`

	// Data contains the encoded payload
	Data []byte `json:"data,omitempty"`

	// Metadata is matched by Filter.Metadata
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EventCodec defines how to serialize and deserialize event payloads.
type EventCodec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec implements EventCodec with go-json-experiment.
type JSONCodec struct{}

// Marshal converts a payload to JSON bytes.
func (c JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes into a payload.
func (c JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewEvent creates a new event with a generated ID and current timestamp.
func NewEvent(eventType, source string, payload any, codec EventCodec) (Event, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
		Metadata:  make(map[string]string),
	}, nil
}

// WithMetadata adds a metadata key-value pair to the event.
func (e Event) WithMetadata(key, value string) Event {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	e.Metadata = md
	return e
}

// DecodePayload deserializes the event data into the provided struct.
func (e Event) DecodePayload(v any, codec EventCodec) error {
	if len(e.Data) == 0 {
		return nil
	}
	return codec.Unmarshal(e.Data, v)
}
