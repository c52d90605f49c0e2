// Package events provides an in-process publish/subscribe bus for document
// change events.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event names published by the predefine service.
const (
	Created = "predefine.created"
	Updated = "predefine.updated"
	Deleted = "predefine.deleted"
)

// Event represents a published change.
type Event struct {
	// Name is the event name (e.g. "predefine.created").
	Name string `json:"name"`

	// Namespace and Bucket locate the changed document.
	Namespace string `json:"namespace"`
	Bucket    string `json:"bucket"`

	// ID is the changed document id.
	ID string `json:"id"`

	// Data is the document after the change.
	Data any `json:"data,omitempty"`

	// At is when the change happened.
	At time.Time `json:"at"`
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// Supports wildcard subscriptions:
//   - "predefine.created" - exact match
//   - "predefine.*" - all predefine events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish emits an event to all matching handlers.
// Handlers are called synchronously in registration order; handler errors
// are logged and do not stop delivery.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	matched := b.match(event.Name)
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Str("bucket", event.Bucket).
		Str("id", event.ID).
		Int("handlers", len(matched)).
		Msg("event emitted")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.match(event)) > 0
}

// match collects handlers for name. Callers hold the read lock.
func (b *Bus) match(name string) []Handler {
	var matched []Handler
	matched = append(matched, b.handlers[name]...)
	if prefix, _, ok := strings.Cut(name, "."); ok {
		matched = append(matched, b.handlers[prefix+".*"]...)
	}
	matched = append(matched, b.handlers["*"]...)
	return matched
}
