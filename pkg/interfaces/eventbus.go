package interfaces

import (
	"context"
	"time"
)

// Event is a notification emitted after a state change has been committed.
type Event interface {
	// EventType returns the dotted event name, e.g. "game.created"
	EventType() string

	// OccurredAt returns when the event was raised
	OccurredAt() time.Time

	// AggregateID returns the ID of the entity the event is about
	AggregateID() string
}

// EventHandler reacts to published events.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error

	// Name identifies the handler in logs
	Name() string
}

// EventBus provides fire-and-forget pub/sub for events.
type EventBus interface {
	// Publish delivers an event to all subscribers synchronously
	Publish(ctx context.Context, event Event) error

	// PublishAsync delivers an event without blocking the caller
	PublishAsync(ctx context.Context, event Event)

	// Subscribe registers a handler for an event type; "*" receives every event
	Subscribe(eventType string, handler EventHandler) error

	Unsubscribe(eventType string, handler EventHandler) error

	Start(ctx context.Context) error
	Stop() error
}

// EventSink forwards events to an external transport.
type EventSink interface {
	PublishEvent(ctx context.Context, event Event) error
	Close() error
}
