// Package events forwards in-process events to an external broker.
package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/questhold/questhold/internal/config"
	"github.com/questhold/questhold/internal/infrastructure/events/kafka"
	"github.com/questhold/questhold/internal/infrastructure/events/nats"
	"github.com/questhold/questhold/pkg/interfaces"
)

// Forwarder relays every event from the in-process bus to a sink.
type Forwarder struct {
	sink   interfaces.EventSink
	logger interfaces.Logger
}

// NewForwarder creates a new event forwarder
func NewForwarder(sink interfaces.EventSink, logger interfaces.Logger) *Forwarder {
	return &Forwarder{sink: sink, logger: logger}
}

// Handle implements interfaces.EventHandler. Failures are logged by the bus.
func (f *Forwarder) Handle(ctx context.Context, event interfaces.Event) error {
	if err := f.sink.PublishEvent(ctx, event); err != nil {
		return fmt.Errorf("forward %s: %w", event.EventType(), err)
	}
	return nil
}

// Name implements interfaces.EventHandler
func (f *Forwarder) Name() string {
	return "events.forwarder"
}

// NewSink connects the sink selected by cfg.Sink. It returns nil when
// forwarding is disabled.
func NewSink(ctx context.Context, cfg config.EventsConfig, logger *zap.Logger) (interfaces.EventSink, error) {
	switch cfg.Sink {
	case "", "none":
		return nil, nil
	case "nats":
		client, cleanup, err := nats.NewClient(ctx, cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		return nats.NewPublisher(client, cleanup, logger), nil
	case "kafka":
		publisher, err := kafka.NewPublisher(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	default:
		return nil, fmt.Errorf("unsupported event sink %q", cfg.Sink)
	}
}
