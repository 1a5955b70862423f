// Package ratelimit provides per-caller fixed-window request counting.
//
// The counting algorithm lives in Limiter. Buckets are kept in an injected
// Store, so retention (bounded LRU in memory, or Redis with key expiry) is
// independent of the algorithm.
package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultMaxRequests is the number of calls allowed per window when unset.
	DefaultMaxRequests = 60
	// DefaultWindow is the window length when unset.
	DefaultWindow = 60 * time.Second
)

type (
	// Config holds the limits of one limiter instance.
	Config struct {
		MaxRequests int           `yaml:"max_requests"`
		Window      time.Duration `yaml:"window"`
	}

	// Decision is the outcome of a single Allow call.
	Decision struct {
		Allowed   bool
		Count     int
		Remaining int
		ResetAt   time.Time
		// RetryAfter is how long a rejected caller should wait; zero when allowed.
		RetryAfter time.Duration
	}

	// Limiter counts calls per caller key inside a fixed window.
	//
	// Each limiter owns its own bucket namespace in the store, so several
	// limiters with different limits can share one Store.
	Limiter struct {
		name        string
		maxRequests int
		window      time.Duration
		store       Store
		now         func() time.Time
	}

	// Option configures a Limiter.
	Option func(*Limiter)
)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter named name using store for its buckets.
// Non-positive limits fall back to DefaultMaxRequests and DefaultWindow.
func NewLimiter(name string, cfg Config, store Store, opts ...Option) *Limiter {
	l := &Limiter{
		name:        name,
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window,
		store:       store,
		now:         time.Now,
	}

	if l.maxRequests <= 0 {
		l.maxRequests = DefaultMaxRequests
	}

	if l.window <= 0 {
		l.window = DefaultWindow
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Name returns the limiter name.
func (l *Limiter) Name() string { return l.name }

// MaxRequests returns the number of calls allowed per window.
func (l *Limiter) MaxRequests() int { return l.maxRequests }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records one call for key and reports whether it is within the limit.
//
// A bucket that is absent or whose window has passed is reset to a count of 1.
// A bucket already at the limit rejects the call and is left untouched.
// Otherwise the count is incremented. The store applies the whole
// read-check-increment atomically per key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()

	var decision Decision

	err := l.store.Update(ctx, l.name+":"+key, func(current Bucket, found bool) (Bucket, bool) {
		var (
			next  Bucket
			write bool
		)

		next, decision, write = l.decide(current, found, now)

		return next, write
	})
	if err != nil {
		return Decision{}, err
	}

	return decision, nil
}

func (l *Limiter) decide(b Bucket, found bool, now time.Time) (Bucket, Decision, bool) {
	if !found || now.After(b.WindowResetAt) {
		next := Bucket{Count: 1, WindowResetAt: now.Add(l.window)}

		return next, Decision{
			Allowed:   true,
			Count:     1,
			Remaining: l.maxRequests - 1,
			ResetAt:   next.WindowResetAt,
		}, true
	}

	if b.Count >= l.maxRequests {
		return b, Decision{
			Count:      b.Count,
			ResetAt:    b.WindowResetAt,
			RetryAfter: b.WindowResetAt.Sub(now),
		}, false
	}

	b.Count++

	return b, Decision{
		Allowed:   true,
		Count:     b.Count,
		Remaining: l.maxRequests - b.Count,
		ResetAt:   b.WindowResetAt,
	}, true
}
