package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a Kafka topic, keyed by request id so that
// every change of one request lands on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	cfg    Config
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher for cfg.Brokers and cfg.Topic.
func NewKafkaPublisher(cfg Config, logger *slog.Logger) *KafkaPublisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           cfg.WriteTimeout,
			BatchSize:              publishBatchSize,
			BatchTimeout:           publishBatchTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Publish writes evt synchronously and returns once the broker acknowledges it.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := encode(evt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(evt.RequestID),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
			{Key: "correlation_id", Value: []byte(evt.CorrelationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to %s: %w", p.cfg.Topic, err)
	}

	p.logger.DebugContext(ctx, "Published event",
		slog.String("topic", p.cfg.Topic),
		slog.String("type", evt.Type),
		slog.String("request_id", evt.RequestID))

	return nil
}

// Close flushes pending writes and closes broker connections.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}

	return nil
}
