package settings

import "time"

// EventConfigUpdated is published after a setting was changed or reset.
const EventConfigUpdated = "config.updated"

// ConfigUpdatedEvent carries the new effective value of a setting.
type ConfigUpdatedEvent struct {
	Key        string      `json:"key"`
	Value      interface{} `json:"value"`
	Reset      bool        `json:"reset,omitempty"`
	occurredAt time.Time
}

func NewConfigUpdatedEvent(key string, value interface{}, reset bool) *ConfigUpdatedEvent {
	return &ConfigUpdatedEvent{Key: key, Value: value, Reset: reset, occurredAt: time.Now()}
}

func (e *ConfigUpdatedEvent) EventType() string     { return EventConfigUpdated }
func (e *ConfigUpdatedEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *ConfigUpdatedEvent) AggregateID() string   { return e.Key }
