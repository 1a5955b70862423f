package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrContention is returned when a store could not apply an update because
// other writers kept changing the same bucket.
var ErrContention = errors.New("rate limit bucket update contention")

type (
	// Bucket is the counting state of one caller.
	Bucket struct {
		Count         int
		WindowResetAt time.Time
	}

	// UpdateFunc receives the stored bucket (found is false when absent) and
	// returns the bucket to store. When write is false nothing is stored.
	UpdateFunc func(current Bucket, found bool) (next Bucket, write bool)

	// Store keeps buckets by key.
	//
	// Update must run fn and persist its result atomically with respect to other
	// Update calls for the same key. fn may be invoked more than once when the
	// store retries an optimistic update.
	Store interface {
		Update(ctx context.Context, key string, fn UpdateFunc) error
	}
)
