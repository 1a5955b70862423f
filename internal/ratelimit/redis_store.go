package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix     = "medfix:ratelimit"
	defaultRedisMaxRetries = 10
	fieldCount             = "count"
	fieldResetAt           = "reset_at"
	// expiryGrace keeps a key slightly past its window so that a call landing
	// exactly on the reset instant still sees the old bucket.
	expiryGrace = time.Second
)

type (
	// RedisStore keeps buckets in Redis hashes so that several API instances
	// share one budget per caller.
	//
	// Updates use WATCH/MULTI optimistic transactions and are retried on
	// conflict. Each key expires shortly after its window, so Redis bounds
	// retention on its own.
	RedisStore struct {
		rdb        redis.UniversalClient
		prefix     string
		maxRetries int
	}

	// RedisOption configures a RedisStore.
	RedisOption func(*RedisStore)
)

// WithRedisPrefix sets the key prefix (default "medfix:ratelimit").
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// WithRedisMaxRetries sets how many optimistic conflicts are tolerated per update.
func WithRedisMaxRetries(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewRedisStore creates a Store backed by rdb.
func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:        rdb,
		prefix:     defaultRedisPrefix,
		maxRetries: defaultRedisMaxRetries,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	redisKey := s.prefix + ":" + key

	txf := func(tx *redis.Tx) error {
		values, err := tx.HMGet(ctx, redisKey, fieldCount, fieldResetAt).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		current, found := parseBucket(values)

		next, write := fn(current, found)
		if !write {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey,
				fieldCount, next.Count,
				fieldResetAt, next.WindowResetAt.UnixMilli(),
			)
			pipe.PExpireAt(ctx, redisKey, next.WindowResetAt.Add(expiryGrace))

			return nil
		})

		return err
	}

	for range s.maxRetries {
		err := s.rdb.Watch(ctx, txf, redisKey)
		if err == nil {
			return nil
		}

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return fmt.Errorf("failed to update rate limit bucket: %w", err)
	}

	return ErrContention
}

// parseBucket reads the HMGET reply. A missing or corrupt hash counts as absent.
func parseBucket(values []any) (Bucket, bool) {
	if len(values) != 2 {
		return Bucket{}, false
	}

	countStr, ok := values[0].(string)
	if !ok {
		return Bucket{}, false
	}

	resetStr, ok := values[1].(string)
	if !ok {
		return Bucket{}, false
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return Bucket{}, false
	}

	resetMillis, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return Bucket{}, false
	}

	return Bucket{Count: count, WindowResetAt: time.UnixMilli(resetMillis)}, true
}
