package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bunko/bunko/pkg/events"
)

var (
	ErrNoBrokers = errors.New("kafka: no brokers configured")
	ErrClosed    = errors.New("kafka: publisher closed")
)

// Header keys set on every event message
const (
	HeaderEventType = "event_type"
	HeaderSessionID = "session_id"
	HeaderTimestamp = "timestamp"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes session events to Kafka. It implements events.Sink.
type Publisher struct {
	mu     sync.RWMutex
	writer MessageWriter
	closed bool
}

var _ events.Sink = (*Publisher)(nil)

// NewPublisher creates a publisher for the configured brokers
func NewPublisher(cfg Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, ErrNoBrokers
	}
	return &Publisher{writer: cfg.writer()}, nil
}

// NewPublisherWithWriter wraps an existing writer
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish sends ev keyed by session id so one session's events stay ordered
// within a partition.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	msg, err := encode(ev)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func encode(ev events.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to serialize event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(ev.Type)},
			{Key: HeaderSessionID, Value: []byte(ev.SessionID)},
			{Key: HeaderTimestamp, Value: []byte(ev.Time.Format(time.RFC3339Nano))},
		},
	}, nil
}

func decode(msg kafka.Message) (events.Event, error) {
	var ev events.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return events.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}
