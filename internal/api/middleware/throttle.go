package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/medfix-io/medfix/internal/api/failure"
)

const burstCapacityMultiplier = 2

// GlobalThrottle is a process-wide token bucket applied before any routing.
//
// It protects the process as a whole. Per-caller budgets are enforced by the
// pipeline rate-limit step, which runs per route.
type GlobalThrottle struct {
	limiter *rate.Limiter
}

// NewGlobalThrottle creates a throttle from cfg. It returns nil when
// cfg.GlobalRPS is not positive, which disables the middleware.
//
// Burst capacity defaults to 2 × rate unless cfg.GlobalBurst overrides it.
func NewGlobalThrottle(cfg *Config) *GlobalThrottle {
	if cfg == nil || cfg.GlobalRPS <= 0 {
		return nil
	}

	burst := cfg.GlobalBurst
	if burst <= 0 {
		burst = cfg.GlobalRPS * burstCapacityMultiplier
	}

	return &GlobalThrottle{
		limiter: rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst),
	}
}

// Allow reports whether one more request fits in the bucket right now.
func (g *GlobalThrottle) Allow() bool {
	return g.limiter.Allow()
}

// retryAfter estimates when the next token is available.
func (g *GlobalThrottle) retryAfter() time.Duration {
	limit := g.limiter.Limit()
	if limit <= 0 {
		return time.Second
	}

	return time.Duration(float64(time.Second) / float64(limit))
}

// GlobalRateLimit returns a middleware that rejects requests with 429 and code
// RATE_LIMIT once the process-wide throttle is exhausted.
func GlobalRateLimit(throttle *GlobalThrottle, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !throttle.Allow() {
				reqLogger := logger.With(slog.String("correlation_id", GetCorrelationID(r.Context())))

				failure.Write(w, r, reqLogger, failure.New("Rate limit exceeded",
					failure.WithStatus(http.StatusTooManyRequests),
					failure.WithCode(failure.CodeRateLimit),
					failure.WithRetryAfter(throttle.retryAfter()),
				))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
