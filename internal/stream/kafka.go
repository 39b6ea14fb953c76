// Package stream publishes assessed readings to Kafka for downstream
// consumers (dashboards, long-term aggregation).
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"plantwatch/internal/config"
	"plantwatch/internal/logger"
	"plantwatch/internal/metrics"
	"plantwatch/internal/models"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("producer is closed")
	ErrSerializeFailed = errors.New("failed to serialize reading")
)

// Producer is a Kafka publisher with a writer pool, retry, and batching.
// Messages are keyed by machine so each machine's readings stay ordered
// within a partition.
type Producer struct {
	cfg     config.ProducerConfig
	topic   string
	writers []*kafka.Writer
	pool    chan *kafka.Writer
	closed  atomic.Bool

	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
	bytesWritten   atomic.Uint64
}

// NewProducer creates a Kafka producer for the given brokers and topic.
func NewProducer(brokers []string, topic string, cfg config.ProducerConfig) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	p := &Producer{
		cfg:     cfg,
		topic:   topic,
		writers: make([]*kafka.Writer, cfg.PoolSize),
		pool:    make(chan *kafka.Writer, cfg.PoolSize),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // partition by key
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Compression:  getCompression(cfg.Compression),
			MaxAttempts:  cfg.MaxRetries + 1,
			Async:        false, // sync for reliability
		}
		p.writers[i] = writer
		p.pool <- writer
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

func message(r *models.Reading) (kafka.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}
	return kafka.Message{
		Key:   []byte(r.Machine),
		Value: data,
		Headers: []kafka.Header{
			{Key: "machine", Value: []byte(r.Machine)},
			{Key: "status", Value: []byte(r.Status)},
		},
		Time: r.Timestamp,
	}, nil
}

// Publish sends one reading to Kafka.
func (p *Producer) Publish(ctx context.Context, r *models.Reading) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	msg, err := message(r)
	if err != nil {
		p.messagesFailed.Add(1)
		return err
	}

	writer, err := p.acquire(ctx)
	if err != nil {
		p.messagesFailed.Add(1)
		return err
	}
	defer p.release(writer)

	if err := p.writeWithRetry(ctx, writer, msg); err != nil {
		p.messagesFailed.Add(1)
		return err
	}

	p.messagesSent.Add(1)
	p.bytesWritten.Add(uint64(len(msg.Value)))
	return nil
}

// PublishBatch sends multiple readings to Kafka in a single batch.
func (p *Producer) PublishBatch(ctx context.Context, readings []*models.Reading) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(readings) == 0 {
		return nil
	}

	log := logger.WithComponent("stream_producer")
	start := time.Now()

	messages := make([]kafka.Message, 0, len(readings))
	for _, r := range readings {
		msg, err := message(r)
		if err != nil {
			log.Error().
				Err(err).
				Str("machine", r.Machine).
				Msg("failed to serialize reading")
			p.messagesFailed.Add(1)
			metrics.StreamPublishTotal.WithLabelValues("failed").Inc()
			continue
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return nil
	}

	writer, err := p.acquire(ctx)
	if err != nil {
		p.messagesFailed.Add(uint64(len(messages)))
		return err
	}
	defer p.release(writer)

	err = p.writeWithRetry(ctx, writer, messages...)
	duration := time.Since(start)
	metrics.StreamPublishDuration.Observe(duration.Seconds())

	if err != nil {
		log.Error().
			Err(err).
			Int("batch_size", len(messages)).
			Dur("duration", duration).
			Msg("failed to publish batch")
		p.messagesFailed.Add(uint64(len(messages)))
		metrics.StreamPublishTotal.WithLabelValues("failed").Add(float64(len(messages)))
		return err
	}

	log.Debug().
		Int("batch_size", len(messages)).
		Dur("duration", duration).
		Msg("batch published")

	p.messagesSent.Add(uint64(len(messages)))
	metrics.StreamPublishTotal.WithLabelValues("success").Add(float64(len(messages)))

	var bytesTotal uint64
	for _, msg := range messages {
		bytesTotal += uint64(len(msg.Value))
	}
	p.bytesWritten.Add(bytesTotal)
	metrics.StreamBytesWritten.Add(float64(bytesTotal))

	return nil
}

func (p *Producer) acquire(ctx context.Context) (*kafka.Writer, error) {
	select {
	case writer := <-p.pool:
		return writer, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Producer) release(writer *kafka.Writer) { p.pool <- writer }

// writeWithRetry publishes messages with exponential backoff retry.
func (p *Producer) writeWithRetry(ctx context.Context, writer *kafka.Writer, msgs ...kafka.Message) error {
	log := logger.WithComponent("stream_producer")
	var lastErr error
	backoff := p.cfg.RetryBackoff

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying stream publish")
			metrics.StreamPublishRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := writer.WriteMessages(ctx, msgs...)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Msg("stream publish attempt failed")

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// Close closes all writers in the pool.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	var errs []error
	for _, writer := range p.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing writers: %v", errs)
	}
	return nil
}

// Stats returns producer statistics.
func (p *Producer) Stats() Stats {
	return Stats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
		BytesWritten:   p.bytesWritten.Load(),
	}
}

// Stats holds producer metrics.
type Stats struct {
	MessagesSent   uint64 `json:"messages_sent"`
	MessagesFailed uint64 `json:"messages_failed"`
	BytesWritten   uint64 `json:"bytes_written"`
}

// HealthCheck verifies the producer is usable.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	writer, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer p.release(writer)
	_ = writer.Stats()
	return nil
}
