// Package middleware provides the server-wide HTTP middleware of the medfix API.
//
// These wrap the whole mux. Per-route concerns (rate limits per policy, schema
// validation) live in the pipeline package instead.
package middleware

import (
	"log/slog"
	"net/http"
)

type (
	// Option is a function that applies middleware to a handler.
	Option func(http.Handler) http.Handler
)

// Apply wraps handler with options. The first option becomes the outermost
// middleware.
//
// Example:
//
//	handler := middleware.Apply(mux,
//	    middleware.WithCorrelationID(),
//	    middleware.WithRecovery(logger),
//	    middleware.WithGlobalRateLimit(throttle, logger),
//	    middleware.WithRequestLogger(logger),
//	    middleware.WithCORS(corsConfig),
//	    middleware.WithMaxBodySize(1<<20),
//	)
func Apply(handler http.Handler, options ...Option) http.Handler {
	for i := len(options) - 1; i >= 0; i-- {
		handler = options[i](handler)
	}

	return handler
}

// WithCorrelationID returns an option that adds correlation ID middleware.
func WithCorrelationID() Option {
	return CorrelationID()
}

// WithRecovery returns an option that adds panic recovery middleware.
func WithRecovery(logger *slog.Logger) Option {
	return Recovery(logger)
}

// WithGlobalRateLimit returns an option that adds the process-wide throttle.
// A nil throttle disables it.
func WithGlobalRateLimit(throttle *GlobalThrottle, logger *slog.Logger) Option {
	if throttle == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return GlobalRateLimit(throttle, logger)
}

// WithRequestLogger returns an option that adds request logging middleware.
func WithRequestLogger(logger *slog.Logger) Option {
	return RequestLogger(logger)
}

// WithCORS returns an option that adds CORS middleware.
func WithCORS(config CORSConfig) Option {
	return CORS(config)
}

// WithMaxBodySize returns an option that caps request body size.
func WithMaxBodySize(limit int64) Option {
	return MaxBodySize(limit)
}
