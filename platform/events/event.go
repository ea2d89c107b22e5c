// Package events provides the in-process event bus the lead and outreach
// modules communicate over.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"
)

// Event is the base interface all domain events must implement.
type Event interface {
	// EventName returns a unique identifier for the event type.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides the timestamp common to all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent creates a base event stamped with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of a specific type. Modules typically implement
// Handler themselves and switch on the concrete event type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// Bus is the interface for publishing and subscribing to domain events.
type Bus interface {
	// Publish delivers an event to all handlers subscribed to its name.
	// Delivery is asynchronous; handler errors are logged, not returned.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers an event in the caller's goroutine and returns
	// the first handler error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the event name, as returned by
	// Event.EventName().
	Subscribe(eventName string, handler Handler)
}
