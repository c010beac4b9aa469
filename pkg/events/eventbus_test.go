package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
	"github.com/questhold/questhold/pkg/logger"
)

type testEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	at   time.Time
}

func (e *testEvent) EventType() string     { return e.Type }
func (e *testEvent) OccurredAt() time.Time { return e.at }
func (e *testEvent) AggregateID() string   { return e.ID }

type recorder struct {
	mu     sync.Mutex
	name   string
	events []interfaces.Event
	err    error
}

func (r *recorder) Handle(_ context.Context, event interfaces.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type EventBusTestSuite struct {
	suite.Suite

	ctx context.Context
	bus *events.InMemoryEventBus
}

func (suite *EventBusTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.bus = events.NewInMemoryEventBus(logger.NewNoopLogger())
	suite.Require().NoError(suite.bus.Start(suite.ctx))
}

func (suite *EventBusTestSuite) TestPublish_RoutesByTypeAndWildcard() {
	// Arrange
	games := &recorder{name: "games"}
	all := &recorder{name: "all"}
	suite.Require().NoError(suite.bus.Subscribe("game.created", games))
	suite.Require().NoError(suite.bus.Subscribe(events.AllEvents, all))

	// Act
	suite.Require().NoError(suite.bus.Publish(suite.ctx, &testEvent{Type: "game.created", ID: "g1"}))
	suite.Require().NoError(suite.bus.Publish(suite.ctx, &testEvent{Type: "library.created", ID: "l1"}))

	// Assert
	suite.Equal(1, games.count())
	suite.Equal(2, all.count())
}

func (suite *EventBusTestSuite) TestPublish_HandlerErrorDoesNotStopOthers() {
	failing := &recorder{name: "failing", err: errors.New("boom")}
	ok := &recorder{name: "ok"}
	suite.Require().NoError(suite.bus.Subscribe("game.deleted", failing))
	suite.Require().NoError(suite.bus.Subscribe("game.deleted", ok))

	err := suite.bus.Publish(suite.ctx, &testEvent{Type: "game.deleted", ID: "g1"})

	suite.NoError(err)
	suite.Equal(1, failing.count())
	suite.Equal(1, ok.count())
}

func (suite *EventBusTestSuite) TestUnsubscribe() {
	r := &recorder{name: "r"}
	suite.Require().NoError(suite.bus.Subscribe("game.created", r))
	suite.Require().NoError(suite.bus.Unsubscribe("game.created", r))

	suite.Require().NoError(suite.bus.Publish(suite.ctx, &testEvent{Type: "game.created"}))

	suite.Equal(0, r.count())
}

func (suite *EventBusTestSuite) TestStop_WaitsForAsyncAndDropsLater() {
	r := &recorder{name: "r"}
	suite.Require().NoError(suite.bus.Subscribe("game.created", r))

	suite.bus.PublishAsync(suite.ctx, &testEvent{Type: "game.created"})
	suite.Require().NoError(suite.bus.Stop())
	suite.Equal(1, r.count())

	suite.bus.PublishAsync(suite.ctx, &testEvent{Type: "game.created"})
	suite.Equal(1, r.count())
}

func (suite *EventBusTestSuite) TestEnvelope() {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env, err := events.NewEnvelope(&testEvent{Type: "game.created", ID: "g1", at: at})
	suite.Require().NoError(err)

	suite.NotEmpty(env.ID)
	suite.Equal("game.created", env.EventType)
	suite.Equal("g1", env.AggregateID)
	suite.Equal(at, env.OccurredAt)

	raw, err := env.Marshal()
	suite.Require().NoError(err)
	var decoded map[string]interface{}
	suite.Require().NoError(json.Unmarshal(raw, &decoded))
	suite.Equal("g1", decoded["data"].(map[string]interface{})["id"])
}

func TestEventBusTestSuite(t *testing.T) {
	suite.Run(t, new(EventBusTestSuite))
}
