package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bunko/bunko/pkg/events"
	"github.com/bunko/bunko/pkg/logging"
)

// MessageReader is the subset of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads session events back from the topic
type Consumer struct {
	reader MessageReader
	logger logging.Logger
}

// NewConsumer creates a consumer for the configured topic
func NewConsumer(cfg Config, logger logging.Logger) (*Consumer, error) {
	if !cfg.Enabled() {
		return nil, ErrNoBrokers
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.topic(),
		GroupID:        cfg.Consumer.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    startOffset(cfg.Consumer.AutoOffsetReset),
	})
	return NewConsumerWithReader(reader, logger), nil
}

// NewConsumerWithReader wraps an existing reader
func NewConsumerWithReader(r MessageReader, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{reader: r, logger: logger}
}

// Run delivers events to h until ctx is done. Messages that fail to decode
// are skipped and committed.
func (c *Consumer) Run(ctx context.Context, h events.Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch event: %w", err)
		}

		ev, err := decode(msg)
		if err != nil {
			c.logger.Warn("skipping malformed event",
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
		} else {
			h(ev)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("failed to commit event", logging.Int64("offset", msg.Offset), logging.Err(err))
		}
	}
}

// Close closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
