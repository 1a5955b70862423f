package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medfix-io/medfix/internal/storage"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MEDFIX_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("MEDFIX_KAFKA_TOPIC", "")

	cfg := LoadConfig()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, DefaultTopic, cfg.Topic)
	assert.Equal(t, defaultWriteTimeout, cfg.WriteTimeout)
}

func TestNewSelectsPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	_, isLog := New(Config{}, logger).(*LogPublisher)
	assert.True(t, isLog, "no brokers means log publisher")

	p := New(Config{Brokers: []string{"localhost:9092"}}, logger)
	_, isKafka := p.(*KafkaPublisher)
	assert.True(t, isKafka)
	require.NoError(t, p.Close())
}

func TestEventJSON(t *testing.T) {
	req := &storage.Request{ID: "req-1", Status: storage.StatusApproved}
	evt := NewStatusChanged(req, storage.StatusPending, "admin-1", "corr-1")

	assert.WithinDuration(t, time.Now(), evt.OccurredAt, time.Second)

	data, err := encode(evt)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeStatusChanged, decoded["type"])
	assert.Equal(t, "req-1", decoded["requestId"])
	assert.Equal(t, "pending", decoded["previousStatus"])
	assert.Equal(t, "approved", decoded["status"])
	assert.Equal(t, "corr-1", decoded["correlationId"])
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer

	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))
	evt := NewStatusChanged(&storage.Request{ID: "req-9", Status: storage.StatusCompleted},
		storage.StatusInProgress, "admin", "")

	require.NoError(t, p.Publish(context.Background(), evt))
	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
	assert.Contains(t, buf.String(), `"status":"completed"`)
	assert.NoError(t, p.Close())
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("broker down") }
func (failingPublisher) Close() error                         { return nil }

func TestNotifyLogsFailure(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	Notify(context.Background(), failingPublisher{}, logger, Event{Type: TypeStatusChanged, RequestID: "r"})

	assert.Contains(t, buf.String(), "Failed to publish event")
	assert.Contains(t, buf.String(), "broker down")
}

func TestNewKafkaPublisher_FlushesEachEvent(t *testing.T) {
	p := NewKafkaPublisher(Config{Brokers: []string{"localhost:9092"}}, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, 1, p.writer.BatchSize)
	assert.LessOrEqual(t, p.writer.BatchTimeout, 10*time.Millisecond)
	assert.Equal(t, DefaultTopic, p.writer.Topic)
	assert.Equal(t, defaultWriteTimeout, p.writer.WriteTimeout)
}
