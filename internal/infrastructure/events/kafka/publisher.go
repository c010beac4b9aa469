package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/questhold/questhold/internal/config"
	"github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
)

// Publisher forwards events to a Kafka topic. It implements
// interfaces.EventSink.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewPublisher creates a new Kafka event publisher
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) (*Publisher, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = "questhold"
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	return NewPublisherWithProducer(producer, cfg.Topic, logger), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger.Named("kafka.publisher"),
	}
}

// PublishEvent publishes an event envelope keyed by aggregate id, so events
// about one entity stay ordered within a partition.
func (p *Publisher) PublishEvent(ctx context.Context, event interfaces.Event) error {
	envelope, err := events.NewEnvelope(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	data, err := envelope.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AggregateID()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(envelope.ID)},
			{Key: []byte("event_type"), Value: []byte(event.EventType())},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("event_id", envelope.ID),
		zap.String("event_type", event.EventType()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
