// Package kafka publishes alert lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"vitalwatch/internal/config"
	"vitalwatch/internal/logger"
	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("producer is closed")
	ErrSerializeFailed = errors.New("failed to serialize event")
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer is a Kafka producer with a writer pool and retry with backoff.
// Events are keyed by patient id so one patient's events stay ordered on a
// single partition.
type Producer struct {
	cfg     config.ProducerConfig
	topic   string
	writers []messageWriter
	pool    chan messageWriter
	closed  atomic.Bool

	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
	bytesWritten   atomic.Uint64
}

// ProducerOption is a functional option for configuring the producer
type ProducerOption func(*Producer)

// withWriters replaces the kafka writers, for tests.
func withWriters(ws ...messageWriter) ProducerOption {
	return func(p *Producer) {
		p.writers = ws
	}
}

// NewProducer creates a producer for topic on brokers
func NewProducer(brokers []string, topic string, cfg config.ProducerConfig, opts ...ProducerOption) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	p := &Producer{cfg: cfg, topic: topic}
	for _, opt := range opts {
		opt(p)
	}

	if p.writers == nil {
		compression := getCompression(cfg.Compression)
		for i := 0; i < cfg.PoolSize; i++ {
			p.writers = append(p.writers, &kafka.Writer{
				Addr:         kafka.TCP(brokers...),
				Topic:        topic,
				Balancer:     &kafka.Hash{},
				BatchSize:    cfg.BatchSize,
				BatchTimeout: cfg.BatchTimeout,
				WriteTimeout: cfg.WriteTimeout,
				RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
				Compression:  compression,
				// Retries are handled here with backoff.
				MaxAttempts: 1,
			})
		}
	}

	p.pool = make(chan messageWriter, len(p.writers))
	for _, w := range p.writers {
		p.pool <- w
	}
	return p, nil
}

func getCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.None
	}
}

// toMessage encodes one event as a keyed kafka message.
func toMessage(ev *models.AlertEvent) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}
	return kafka.Message{
		Key:   []byte(ev.PartitionKey),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "alert_id", Value: []byte(ev.Alert.ID)},
			{Key: "patient_id", Value: []byte(ev.Alert.PatientID)},
			{Key: "node", Value: []byte(ev.Node)},
		},
		Time: ev.EmittedAt,
	}, nil
}

// Publish sends one event
func (p *Producer) Publish(ctx context.Context, ev *models.AlertEvent) error {
	return p.PublishBatch(ctx, []*models.AlertEvent{ev})
}

// PublishBatch sends events in a single write. Events that cannot be
// serialized are logged and skipped.
func (p *Producer) PublishBatch(ctx context.Context, events []*models.AlertEvent) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(events) == 0 {
		return nil
	}

	log := logger.WithComponent("kafka_producer")
	start := time.Now()

	messages := make([]kafka.Message, 0, len(events))
	var serializeErr error
	for _, ev := range events {
		msg, err := toMessage(ev)
		if err != nil {
			log.Error().
				Err(err).
				Str("alert_id", ev.Alert.ID).
				Msg("failed to serialize alert event")
			p.messagesFailed.Add(1)
			metrics.KafkaPublishTotal.WithLabelValues("failed").Inc()
			serializeErr = err
			continue
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return serializeErr
	}

	var writer messageWriter
	select {
	case writer = <-p.pool:
		defer func() { p.pool <- writer }()
	case <-ctx.Done():
		p.messagesFailed.Add(uint64(len(messages)))
		return ctx.Err()
	}

	err := p.writeWithRetry(ctx, writer, messages)
	duration := time.Since(start)
	metrics.KafkaPublishDuration.Observe(duration.Seconds())

	if err != nil {
		log.Error().
			Err(err).
			Int("batch_size", len(messages)).
			Dur("duration", duration).
			Msg("failed to publish alert events to kafka")
		p.messagesFailed.Add(uint64(len(messages)))
		metrics.KafkaPublishTotal.WithLabelValues("failed").Add(float64(len(messages)))
		return err
	}

	log.Debug().
		Int("batch_size", len(messages)).
		Dur("duration", duration).
		Msg("alert events published to kafka")

	var bytes uint64
	for _, m := range messages {
		bytes += uint64(len(m.Value))
	}
	p.messagesSent.Add(uint64(len(messages)))
	p.bytesWritten.Add(bytes)
	metrics.KafkaPublishTotal.WithLabelValues("success").Add(float64(len(messages)))
	metrics.KafkaBytesWritten.Add(float64(bytes))
	return nil
}

// writeWithRetry writes messages with exponential backoff between attempts
func (p *Producer) writeWithRetry(ctx context.Context, writer messageWriter, messages []kafka.Message) error {
	log := logger.WithComponent("kafka_producer")
	var lastErr error
	backoff := p.cfg.RetryBackoff

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Int("batch_size", len(messages)).
				Dur("backoff", backoff).
				Msg("retrying kafka publish")
			metrics.KafkaPublishRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := writer.WriteMessages(ctx, messages...)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// Close closes all writers in the pool
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	var errs []error
	for _, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns producer statistics
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
		BytesWritten:   p.bytesWritten.Load(),
	}
}

// ProducerStats holds producer counters
type ProducerStats struct {
	MessagesSent   uint64
	MessagesFailed uint64
	BytesWritten   uint64
}

// HealthCheck reports whether the producer can accept events.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	select {
	case w := <-p.pool:
		p.pool <- w
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
