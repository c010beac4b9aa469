package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/questhold/questhold/internal/config"
	infraevents "github.com/questhold/questhold/internal/infrastructure/events"
	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
	"github.com/questhold/questhold/pkg/logger"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) PublishEvent(ctx context.Context, event interfaces.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockSink) Close() error {
	return m.Called().Error(0)
}

func TestForwarder_RelaysEveryEvent(t *testing.T) {
	// Arrange
	sink := new(MockSink)
	bus := events.NewInMemoryEventBus(logger.NewNoopLogger())
	assert.NoError(t, bus.Subscribe(events.AllEvents, infraevents.NewForwarder(sink, logger.NewNoopLogger())))

	first := domain.NewLibraryDeletedEvent(uuid.New())
	second := domain.NewLibraryDeletedEvent(uuid.New())
	sink.On("PublishEvent", mock.Anything, first).Return(nil).Once()
	sink.On("PublishEvent", mock.Anything, second).Return(errors.New("broker down")).Once()

	// Act
	assert.NoError(t, bus.Publish(context.Background(), first))
	assert.NoError(t, bus.Publish(context.Background(), second))

	// Assert
	sink.AssertExpectations(t)
}

func TestForwarder_WrapsSinkErrors(t *testing.T) {
	// Arrange
	sink := new(MockSink)
	sink.On("PublishEvent", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	forwarder := infraevents.NewForwarder(sink, logger.NewNoopLogger())

	// Act
	err := forwarder.Handle(context.Background(), domain.NewLibraryDeletedEvent(uuid.New()))

	// Assert
	assert.ErrorContains(t, err, "forward library.deleted")
}

func TestNewSink(t *testing.T) {
	// Act
	none, errNone := infraevents.NewSink(context.Background(), config.EventsConfig{Sink: "none"}, zaptest.NewLogger(t))
	_, errBad := infraevents.NewSink(context.Background(), config.EventsConfig{Sink: "carrier-pigeon"}, zaptest.NewLogger(t))

	// Assert
	assert.NoError(t, errNone)
	assert.Nil(t, none)
	assert.ErrorContains(t, errBad, "unsupported event sink")
}
