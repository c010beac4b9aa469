package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
)

const publishTimeout = 5 * time.Second

// Publisher forwards events to JetStream. It implements interfaces.EventSink.
type Publisher struct {
	js      jetstream.JetStream
	cleanup func()
	logger  *zap.Logger
}

// NewPublisher creates a new NATS event publisher. cleanup, when set, runs
// on Close.
func NewPublisher(client *Client, cleanup func(), logger *zap.Logger) *Publisher {
	return &Publisher{
		js:      client.JetStream(),
		cleanup: cleanup,
		logger:  logger.Named("nats.publisher"),
	}
}

// Subject returns the subject an event type is published on.
func Subject(eventType string) string {
	return SubjectPrefix + strings.ToLower(eventType)
}

// PublishEvent publishes an event envelope. The envelope ID doubles as the
// JetStream deduplication id.
func (p *Publisher) PublishEvent(ctx context.Context, event interfaces.Event) error {
	envelope, err := events.NewEnvelope(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data, err := envelope.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	subject := Subject(event.EventType())
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ack, err := p.js.Publish(pubCtx, subject, data, jetstream.WithMsgID(envelope.ID))
	if err != nil {
		p.logger.Error("Failed to publish event",
			zap.Error(err),
			zap.String("event_id", envelope.ID),
			zap.String("subject", subject),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("event_id", envelope.ID),
		zap.String("subject", subject),
		zap.Uint64("sequence", ack.Sequence),
		zap.Bool("duplicate", ack.Duplicate),
	)
	return nil
}

// Close drains the connection when the publisher owns it.
func (p *Publisher) Close() error {
	if p.cleanup != nil {
		p.cleanup()
	}
	return nil
}
