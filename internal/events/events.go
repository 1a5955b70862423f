// Package events publishes maintenance request lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/medfix-io/medfix/internal/config"
	"github.com/medfix-io/medfix/internal/storage"
)

const (
	// DefaultTopic receives request status changes.
	DefaultTopic = "maintenance.request.status"
	// TypeStatusChanged identifies a status change event.
	TypeStatusChanged = "maintenance.request.status_changed"

	defaultWriteTimeout = 5 * time.Second
	// Each request publishes at most one event, so batches flush immediately.
	publishBatchSize    = 1
	publishBatchTimeout = 5 * time.Millisecond
)

type (
	// Event describes one status change of a maintenance request.
	Event struct {
		Type           string         `json:"type"`
		RequestID      string         `json:"requestId"`
		PreviousStatus storage.Status `json:"previousStatus"`
		Status         storage.Status `json:"status"`
		ChangedBy      string         `json:"changedBy"`
		OccurredAt     time.Time      `json:"occurredAt"`
		CorrelationID  string         `json:"correlationId,omitempty"`
	}

	// Publisher delivers events.
	Publisher interface {
		Publish(ctx context.Context, evt Event) error
		Close() error
	}

	// Config selects and configures the publisher.
	Config struct {
		Brokers      []string
		Topic        string
		WriteTimeout time.Duration
	}
)

// LoadConfig reads MEDFIX_KAFKA_BROKERS, MEDFIX_KAFKA_TOPIC and MEDFIX_KAFKA_WRITE_TIMEOUT.
func LoadConfig() Config {
	return Config{
		Brokers:      config.ParseCommaSeparatedList(config.GetEnvStr("MEDFIX_KAFKA_BROKERS", "")),
		Topic:        config.GetEnvStr("MEDFIX_KAFKA_TOPIC", DefaultTopic),
		WriteTimeout: config.GetEnvDuration("MEDFIX_KAFKA_WRITE_TIMEOUT", defaultWriteTimeout),
	}
}

// NewStatusChanged builds a status change event stamped with the current time.
func NewStatusChanged(req *storage.Request, previous storage.Status, changedBy, correlationID string) Event {
	return Event{
		Type:           TypeStatusChanged,
		RequestID:      req.ID,
		PreviousStatus: previous,
		Status:         req.Status,
		ChangedBy:      changedBy,
		OccurredAt:     time.Now().UTC(),
		CorrelationID:  correlationID,
	}
}

// New returns a KafkaPublisher when brokers are configured and a LogPublisher otherwise.
func New(cfg Config, logger *slog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("No Kafka brokers configured, status events are logged only")

		return NewLogPublisher(logger)
	}

	logger.Info("Publishing status events to Kafka",
		slog.Any("brokers", cfg.Brokers), slog.String("topic", cfg.Topic))

	return NewKafkaPublisher(cfg, logger)
}

// Notify publishes evt and logs a failure instead of returning it.
func Notify(ctx context.Context, p Publisher, logger *slog.Logger, evt Event) {
	if err := p.Publish(ctx, evt); err != nil {
		logger.Error("Failed to publish event",
			slog.String("type", evt.Type),
			slog.String("request_id", evt.RequestID),
			slog.String("error", err.Error()))
	}
}

func encode(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	return data, nil
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs evt at info level.
func (p *LogPublisher) Publish(ctx context.Context, evt Event) error {
	p.logger.InfoContext(ctx, "Request status changed",
		slog.String("type", evt.Type),
		slog.String("request_id", evt.RequestID),
		slog.String("previous_status", string(evt.PreviousStatus)),
		slog.String("status", string(evt.Status)),
		slog.String("changed_by", evt.ChangedBy),
		slog.String("correlation_id", evt.CorrelationID))

	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
