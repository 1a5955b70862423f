package pipeline

import "log/slog"

// Policies are named, ordered step bundles. Rate limiting always comes first so
// that throttled callers never cost a body parse.
//
// Authorization is not a step in any policy. Handlers check the session
// themselves, next to the business rules that depend on the role.

// Public is [rateLimit].
func Public(limiter Limiter, logger *slog.Logger) []Step {
	return []Step{RateLimit(limiter, logger)}
}

// Validated is [rateLimit, validate...].
func Validated(limiter Limiter, logger *slog.Logger, validators ...Step) []Step {
	return append([]Step{RateLimit(limiter, logger)}, validators...)
}

// AdminValidated is [rateLimit, validate...]. It has the same steps as
// Validated. The admin check happens in the terminal handler.
func AdminValidated(limiter Limiter, logger *slog.Logger, validators ...Step) []Step {
	return Validated(limiter, logger, validators...)
}
