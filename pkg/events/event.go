package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/questhold/questhold/pkg/interfaces"
)

// Envelope wraps an event with transport metadata for external sinks.
type Envelope struct {
	ID          string          `json:"id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// NewEnvelope serializes event into an envelope with a fresh message id.
func NewEnvelope(event interfaces.Event) (*Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:          uuid.NewString(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt().UTC(),
		Data:        data,
	}, nil
}

// Marshal returns the JSON wire form of the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
