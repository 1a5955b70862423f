package pipeline

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/ratelimit"
)

// Limiter is the rate-limit capability used by the RateLimit step.
// *ratelimit.Limiter implements it.
type Limiter interface {
	Name() string
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

type rateLimitStep struct {
	limiter Limiter
	logger  *slog.Logger
}

// RateLimit returns a step that charges the call to the caller's bucket.
//
// Rejected calls fail with 429 and code RATE_LIMIT, carrying a Retry-After
// hint. When the bucket store itself fails, the call is let through and the
// error is logged.
func RateLimit(limiter Limiter, logger *slog.Logger) Step {
	return &rateLimitStep{limiter: limiter, logger: logger}
}

func (s *rateLimitStep) Name() string { return "ratelimit:" + s.limiter.Name() }

func (s *rateLimitStep) Apply(env *Envelope) (*Envelope, error) {
	caller := ratelimit.CallerIdentity(env.Request())

	decision, err := s.limiter.Allow(env.Context(), caller)
	if err != nil {
		s.logger.Error("Rate limit store unavailable, allowing request",
			slog.String("limiter", s.limiter.Name()),
			slog.String("caller", caller),
			slog.String("error", err.Error()),
		)

		return env, nil
	}

	if !decision.Allowed {
		return nil, failure.New("Rate limit exceeded",
			failure.WithStatus(http.StatusTooManyRequests),
			failure.WithCode(failure.CodeRateLimit),
			failure.WithRetryAfter(decision.RetryAfter),
		)
	}

	return env, nil
}
