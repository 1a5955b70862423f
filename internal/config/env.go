// Package config reads medfix settings from the environment and provides
// shared test infrastructure.
//
// Every getter falls back to its default when the variable is unset, blank or
// unparseable, so a typo never prevents startup.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup reads key and converts it with parse, or returns defaultValue.
func lookup[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	parsed, err := parse(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

// GetEnvStr returns a string environment variable value or a default if not set.
//
// Example:
//
//	host := GetEnvStr("MEDFIX_SERVER_HOST", "0.0.0.0")
func GetEnvStr(key, defaultValue string) string {
	return lookup(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// GetEnvInt returns an int environment variable value or a default if not set.
//
// Example:
//
//	port := GetEnvInt("MEDFIX_SERVER_PORT", 8080)
func GetEnvInt(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

// GetEnvInt64 returns an int64 environment variable value or a default if not set.
func GetEnvInt64(key string, defaultValue int64) int64 {
	return lookup(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// GetEnvBool returns a bool environment variable value or a default if not set.
// Accepts "true", "1", "yes" and "false", "0", "no" (case-insensitive).
func GetEnvBool(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}

		return false, strconv.ErrSyntax
	})
}

// GetEnvDuration returns a duration environment variable value (e.g. "90s",
// "24h") or a default if not set.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, time.ParseDuration)
}

// GetEnvLogLevel returns a slog level from "debug", "info", "warn"/"warning"
// or "error", or a default if not set.
func GetEnvLogLevel(key string, defaultValue slog.Level) slog.Level {
	return lookup(key, defaultValue, func(s string) (slog.Level, error) {
		switch strings.ToLower(s) {
		case "debug":
			return slog.LevelDebug, nil
		case "info":
			return slog.LevelInfo, nil
		case "warn", "warning":
			return slog.LevelWarn, nil
		case "error":
			return slog.LevelError, nil
		}

		return defaultValue, strconv.ErrSyntax
	})
}

// ParseCommaSeparatedList splits input on commas, trimming entries and dropping
// empty ones.
func ParseCommaSeparatedList(input string) []string {
	result := []string{}

	for part := range strings.SplitSeq(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
