package events

import (
	"context"
	"sync"

	"github.com/questhold/questhold/pkg/interfaces"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// InMemoryEventBus is an in-process, at-most-once implementation of EventBus.
type InMemoryEventBus struct {
	handlers map[string][]interfaces.EventHandler
	mu       sync.RWMutex
	logger   interfaces.Logger
	wg       sync.WaitGroup
	stopped  bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger interfaces.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]interfaces.EventHandler),
		logger:   logger,
	}
}

// Publish delivers event to the handlers of its type and to wildcard handlers.
// Handler errors are logged and never returned.
func (eb *InMemoryEventBus) Publish(ctx context.Context, event interfaces.Event) error {
	eb.mu.RLock()
	handlers := make([]interfaces.EventHandler, 0, len(eb.handlers[event.EventType()])+len(eb.handlers[AllEvents]))
	handlers = append(handlers, eb.handlers[event.EventType()]...)
	handlers = append(handlers, eb.handlers[AllEvents]...)
	eb.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			eb.logger.Error("Event handler failed",
				interfaces.String("event_type", event.EventType()),
				interfaces.String("handler", handler.Name()),
				interfaces.Error(err))
		}
	}

	return nil
}

// PublishAsync publishes an event on a new goroutine. Events published after
// Stop are dropped.
func (eb *InMemoryEventBus) PublishAsync(ctx context.Context, event interfaces.Event) {
	eb.mu.RLock()
	if eb.stopped {
		eb.mu.RUnlock()
		eb.logger.Debug("Event bus stopped, dropping event",
			interfaces.String("event_type", event.EventType()))
		return
	}
	eb.wg.Add(1)
	eb.mu.RUnlock()

	go func() {
		defer eb.wg.Done()
		_ = eb.Publish(context.WithoutCancel(ctx), event)
	}()
}

// Subscribe registers a handler for a specific event type
func (eb *InMemoryEventBus) Subscribe(eventType string, handler interfaces.EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Debug("Event handler subscribed",
		interfaces.String("event_type", eventType),
		interfaces.String("handler", handler.Name()))

	return nil
}

// Unsubscribe removes a handler for a specific event type
func (eb *InMemoryEventBus) Unsubscribe(eventType string, handler interfaces.EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	handlers := eb.handlers[eventType]
	for i, h := range handlers {
		if h == handler {
			eb.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}

	return nil
}

// Start starts the event bus
func (eb *InMemoryEventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	eb.stopped = false
	eb.mu.Unlock()
	eb.logger.Info("Event bus started")
	return nil
}

// Stop rejects new async events and waits for in-flight deliveries.
func (eb *InMemoryEventBus) Stop() error {
	eb.mu.Lock()
	eb.stopped = true
	eb.mu.Unlock()

	eb.wg.Wait()
	eb.logger.Info("Event bus stopped")
	return nil
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, event interfaces.Event) error
}

func (h *HandlerFunc) Handle(ctx context.Context, event interfaces.Event) error {
	return h.Fn(ctx, event)
}

func (h *HandlerFunc) Name() string {
	return h.HandlerName
}
