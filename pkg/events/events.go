// Package events carries session activity to in-process subscribers and
// external sinks.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bunko/bunko/pkg/logging"
)

// Type identifies what happened
type Type string

const (
	TypeSearchCompleted Type = "search.completed"
	TypeSearchFailed    Type = "search.failed"
	TypeAnswerCompleted Type = "answer.completed"
	TypeTabOpened       Type = "tab.opened"
	TypeTabUpdated      Type = "tab.updated"
	TypeTabClosed       Type = "tab.closed"
	TypeTabActivated    Type = "tab.activated"
	TypeContextChanged  Type = "context.changed"
	TypeDocumentFailed  Type = "document.failed"
	TypeDocumentStale   Type = "document.stale"
)

// Event is a single occurrence in a session
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	SessionID string         `json:"session_id"`
	Time      time.Time      `json:"time"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New creates an event with a fresh id and the current time
func New(t Type, sessionID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		SessionID: sessionID,
		Time:      time.Now().UTC(),
		Payload:   payload,
	}
}

// Handler receives published events synchronously
type Handler func(Event)

// Sink forwards events out of process
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Bus fans events out to handlers and sinks. Sink failures are logged and
// never reach the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	sinks    []Sink
	logger   logging.Logger
}

// Option configures a Bus
type Option func(*Bus)

// WithSink adds an external sink
func WithSink(s Sink) Option {
	return func(b *Bus) {
		if s != nil {
			b.sinks = append(b.sinks, s)
		}
	}
}

// WithLogger sets the logger used for sink failures
func WithLogger(l logging.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates an event bus
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[int]Handler),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish delivers ev to every handler, then to every sink
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for i := 0; i < b.nextID; i++ {
		if h, ok := b.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	sinks := b.sinks
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}

	for _, s := range sinks {
		if err := s.Publish(ctx, ev); err != nil {
			b.logger.Warn("failed to forward event",
				logging.String("event_type", string(ev.Type)),
				logging.String("event_id", ev.ID),
				logging.Err(err),
			)
		}
	}
}

// Close closes every sink and returns the first error
func (b *Bus) Close() error {
	b.mu.Lock()
	sinks := b.sinks
	b.sinks = nil
	b.mu.Unlock()

	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
