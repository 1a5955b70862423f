package middleware

import (
	"github.com/medfix-io/medfix/internal/config"
)

const defaultGlobalRPS = 200

// Config holds the server-wide throttle configuration.
//
// GlobalRPS is the sustained number of requests per second accepted by the
// whole process. GlobalBurst overrides the burst capacity; 0 means 2 × rate.
// A GlobalRPS of 0 disables the throttle.
type Config struct {
	GlobalRPS   int
	GlobalBurst int
}

// LoadConfig loads middleware config from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS:   config.GetEnvInt("MEDFIX_GLOBAL_RPS", defaultGlobalRPS),
		GlobalBurst: config.GetEnvInt("MEDFIX_GLOBAL_BURST", 0),
	}
}
