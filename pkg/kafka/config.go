// Package kafka forwards session events to a Kafka topic and reads them back.
package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives session events unless configured otherwise
const DefaultTopic = "bunko.session.events"

// ProducerConfig holds configuration for the event writer
type ProducerConfig struct {
	Acks            string `yaml:"acks"` // "0", "1", "all"
	BatchSize       int    `yaml:"batch_size"`
	LingerMs        int    `yaml:"linger_ms"`
	CompressionType string `yaml:"compression_type"` // none, gzip, snappy, lz4, zstd
}

// ConsumerConfig holds configuration for the event reader
type ConsumerConfig struct {
	GroupID         string `yaml:"group_id"`
	AutoOffsetReset string `yaml:"auto_offset_reset"` // earliest, latest
}

// Config holds complete Kafka configuration
type Config struct {
	Brokers  []string       `yaml:"brokers"`
	Topic    string         `yaml:"topic"`
	Producer ProducerConfig `yaml:"producer"`
	Consumer ConsumerConfig `yaml:"consumer"`
}

// Enabled reports whether any broker is configured
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c Config) topic() string {
	if c.Topic == "" {
		return DefaultTopic
	}
	return c.Topic
}

func (c Config) writer() *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.topic(),
		Balancer:     &kafka.Hash{},
		BatchSize:    c.Producer.BatchSize,
		BatchTimeout: time.Duration(c.Producer.LingerMs) * time.Millisecond,
		Compression:  compressionCodec(c.Producer.CompressionType),
		RequiredAcks: requiredAcks(c.Producer.Acks),
		Async:        true, // callers never wait on the broker
	}
}

func compressionCodec(compression string) kafka.Compression {
	switch compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}

func requiredAcks(acks string) kafka.RequiredAcks {
	switch acks {
	case "0":
		return kafka.RequireNone
	case "1":
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

func startOffset(offset string) int64 {
	if offset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}
