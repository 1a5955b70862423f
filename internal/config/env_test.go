package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvStr(t *testing.T) {
	t.Setenv("MEDFIX_TEST_STR", "  db.internal ")
	assert.Equal(t, "db.internal", GetEnvStr("MEDFIX_TEST_STR", "localhost"))

	t.Setenv("MEDFIX_TEST_STR", "   ")
	assert.Equal(t, "localhost", GetEnvStr("MEDFIX_TEST_STR", "localhost"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("MEDFIX_TEST_INT", "9090")
	assert.Equal(t, 9090, GetEnvInt("MEDFIX_TEST_INT", 8080))

	t.Setenv("MEDFIX_TEST_INT", "ninety")
	assert.Equal(t, 8080, GetEnvInt("MEDFIX_TEST_INT", 8080))

	assert.Equal(t, 7, GetEnvInt("MEDFIX_TEST_INT_UNSET", 7))
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("MEDFIX_TEST_INT64", "2097152")
	assert.Equal(t, int64(2097152), GetEnvInt64("MEDFIX_TEST_INT64", 1))
}

func TestGetEnvBool(t *testing.T) {
	tests := map[string]bool{
		"true": true, "YES": true, "1": true,
		"false": false, "no": false, "0": false,
	}

	for value, want := range tests {
		t.Setenv("MEDFIX_TEST_BOOL", value)
		assert.Equal(t, want, GetEnvBool("MEDFIX_TEST_BOOL", !want), "value %q", value)
	}

	t.Setenv("MEDFIX_TEST_BOOL", "maybe")
	assert.True(t, GetEnvBool("MEDFIX_TEST_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("MEDFIX_TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, GetEnvDuration("MEDFIX_TEST_DURATION", time.Minute))

	t.Setenv("MEDFIX_TEST_DURATION", "soon")
	assert.Equal(t, time.Minute, GetEnvDuration("MEDFIX_TEST_DURATION", time.Minute))
}

func TestGetEnvLogLevel(t *testing.T) {
	t.Setenv("MEDFIX_TEST_LEVEL", "Warning")
	assert.Equal(t, slog.LevelWarn, GetEnvLogLevel("MEDFIX_TEST_LEVEL", slog.LevelInfo))

	t.Setenv("MEDFIX_TEST_LEVEL", "verbose")
	assert.Equal(t, slog.LevelInfo, GetEnvLogLevel("MEDFIX_TEST_LEVEL", slog.LevelInfo))
}

func TestParseCommaSeparatedList(t *testing.T) {
	assert.Equal(t, []string{"GET", "POST", "PATCH"}, ParseCommaSeparatedList(" GET, POST,,PATCH ,"))
	assert.Equal(t, []string{}, ParseCommaSeparatedList(""))
}
