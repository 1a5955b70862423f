package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := New(Options{Format: FormatJSON, Level: slog.LevelInfo, Output: &buf})
	logger.Debug("hidden")
	logger.Info("shown", slog.String("correlation_id", "abc"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "abc", entry["correlation_id"])
}

func TestNewTextWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer

	logger := New(Options{Format: "TEXT", Level: slog.LevelDebug, Output: &buf})
	logger.Debug("starting", slog.Int("port", 8080))

	out := buf.String()
	assert.Contains(t, out, "starting")
	assert.Contains(t, out, "port=8080")
	assert.NotContains(t, out, "\x1b[", "a buffer is not a terminal")
}

func TestNewTextForcedColor(t *testing.T) {
	var buf bytes.Buffer

	color := true
	New(Options{Format: FormatText, Output: &buf, Color: &color}).Error("failed")

	assert.Contains(t, buf.String(), "\x1b[")
}

func TestDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer

	New(Options{Format: "unknown", Output: &buf}).Info("hello")

	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
