package events

import (
	"context"
	"sync"

	"outreach_backend/platform/logger"
)

// InMemoryBus is a process-local Bus implementation. Async handlers run in
// their own goroutine; handler errors are logged, never propagated to the
// publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the named event.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish delivers the event to all subscribed handlers asynchronously.
// The handler goroutine detaches from the caller's context so an HTTP
// request finishing does not cancel in-flight side effects.
func (b *InMemoryBus) Publish(_ context.Context, event Event) {
	b.mu.RLock()
	registered := make([]Handler, len(b.handlers[event.EventName()]))
	copy(registered, b.handlers[event.EventName()])
	b.mu.RUnlock()

	for _, h := range registered {
		go func(h Handler) {
			if err := h.Handle(context.Background(), event); err != nil && b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}(h)
	}
}

// PublishSync delivers the event to all subscribed handlers in order and
// returns the first handler error.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	registered := make([]Handler, len(b.handlers[event.EventName()]))
	copy(registered, b.handlers[event.EventName()])
	b.mu.RUnlock()

	for _, h := range registered {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

var _ Bus = (*InMemoryBus)(nil)
