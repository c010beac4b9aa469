package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/questhold/questhold/internal/infrastructure/events/kafka"
	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/pkg/events"
)

func TestPublisher_PublishEvent(t *testing.T) {
	// Arrange
	producer := mocks.NewSyncProducer(t, nil)
	libraryID := uuid.New()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != libraryID.String() {
			return errors.New("message not keyed by aggregate id")
		}

		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var envelope events.Envelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		if envelope.EventType != domain.EventLibraryDeleted {
			return errors.New("unexpected event type " + envelope.EventType)
		}
		return nil
	})
	publisher := kafka.NewPublisherWithProducer(producer, "questhold-events", zaptest.NewLogger(t))

	// Act
	err := publisher.PublishEvent(context.Background(), domain.NewLibraryDeletedEvent(libraryID))

	// Assert
	assert.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestPublisher_PublishEventFailure(t *testing.T) {
	// Arrange
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	publisher := kafka.NewPublisherWithProducer(producer, "questhold-events", zaptest.NewLogger(t))

	// Act
	err := publisher.PublishEvent(context.Background(), domain.NewLibraryDeletedEvent(uuid.New()))

	// Assert
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}
