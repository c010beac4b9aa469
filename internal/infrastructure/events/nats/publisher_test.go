package nats_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/questhold/questhold/internal/config"
	"github.com/questhold/questhold/internal/infrastructure/events/nats"
	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/pkg/events"
)

var testLibraryID = uuid.MustParse("6f1c2a8e-4b7d-4f0a-9d2e-3c5b7a9e1f20")

func TestSubject(t *testing.T) {
	assert.Equal(t, "questhold.library.scan.progress", nats.Subject(domain.EventScanProgress))
	assert.Equal(t, "questhold.game.created", nats.Subject(domain.EventGameCreated))
}

func TestPublisher_PublishEvent(t *testing.T) {
	// Skip if NATS is not available
	cfg := config.NATSConfig{
		URL:           "nats://localhost:4222",
		ClientName:    "questhold-test",
		MaxReconnect:  1,
		ReconnectWait: time.Second,
	}
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	client, cleanup, err := nats.NewClient(ctx, cfg, logger)
	if err != nil {
		t.Skip("NATS not available:", err)
	}
	publisher := nats.NewPublisher(client, cleanup, logger)
	defer publisher.Close()

	// Arrange
	consumer, err := client.JetStream().OrderedConsumer(ctx, nats.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{nats.Subject(domain.EventLibraryDeleted)},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	require.NoError(t, err)
	event := domain.NewLibraryDeletedEvent(testLibraryID)

	// Act
	err = publisher.PublishEvent(ctx, event)

	// Assert
	require.NoError(t, err)
	msg, err := consumer.Next(jetstream.FetchMaxWait(5 * time.Second))
	require.NoError(t, err)

	var envelope events.Envelope
	require.NoError(t, json.Unmarshal(msg.Data(), &envelope))
	assert.Equal(t, domain.EventLibraryDeleted, envelope.EventType)
	assert.Equal(t, testLibraryID.String(), envelope.AggregateID)
	assert.NoError(t, client.Health(ctx))
}
