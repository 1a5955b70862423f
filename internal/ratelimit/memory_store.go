package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	defaultMaxKeys       = 10000
	defaultSweepInterval = 5 * time.Minute
	thresholdMultiplier  = 0.8
	thresholdPercentage  = 80
)

type (
	// MemoryConfig configures a MemoryStore.
	MemoryConfig struct {
		// MaxKeys caps the number of buckets. The least recently used bucket is
		// evicted when the cap is reached. Default: 10,000.
		MaxKeys int `yaml:"max_keys"`
		// SweepInterval is how often expired buckets are removed. Default: 5 minutes.
		SweepInterval time.Duration `yaml:"sweep_interval"`
	}

	// MemoryStore is a process-local Store with bounded retention.
	//
	// Buckets are held in a size-capped LRU, and a background goroutine
	// periodically drops buckets whose window has passed. A single mutex guards
	// every Update, which makes read-check-increment atomic.
	//
	// Call Close to stop the sweep goroutine.
	MemoryStore struct {
		mu      sync.Mutex
		buckets *simplelru.LRU[string, Bucket]
		maxKeys int
		warned  bool
		now     func() time.Time
		logger  *slog.Logger

		sweepTicker *time.Ticker
		done        chan struct{}
		closeOnce   sync.Once
	}
)

// NewMemoryStore creates a MemoryStore and starts its sweep goroutine.
//
// Example:
//
//	store, err := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{MaxKeys: 5000}, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func NewMemoryStore(cfg MemoryConfig, logger *slog.Logger) (*MemoryStore, error) {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	buckets, err := simplelru.NewLRU[string, Bucket](cfg.MaxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket cache: %w", err)
	}

	s := &MemoryStore{
		buckets:     buckets,
		maxKeys:     cfg.MaxKeys,
		now:         time.Now,
		logger:      logger,
		sweepTicker: time.NewTicker(cfg.SweepInterval),
		done:        make(chan struct{}),
	}

	go s.sweepLoop()

	return s, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.buckets.Get(key)

	next, write := fn(current, found)
	if !write {
		return nil
	}

	s.buckets.Add(key, next)

	if !found {
		s.warnNearCapacity()
	}

	return nil
}

// Len returns the number of buckets currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buckets.Len()
}

// Sweep removes every bucket whose window has passed and returns how many
// were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for _, key := range s.buckets.Keys() {
		b, ok := s.buckets.Peek(key)
		if ok && now.After(b.WindowResetAt) {
			s.buckets.Remove(key)

			removed++
		}
	}

	if s.buckets.Len() < s.threshold() {
		s.warned = false
	}

	return removed
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.sweepTicker.Stop()
		close(s.done)
	})

	return nil
}

func (s *MemoryStore) sweepLoop() {
	for {
		select {
		case <-s.sweepTicker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug("Swept expired rate limit buckets", slog.Int("removed", removed))
			}
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) threshold() int {
	return int(float64(s.maxKeys) * thresholdMultiplier)
}

// warnNearCapacity logs once each time the store crosses 80% of MaxKeys.
// Past the cap the LRU starts evicting live buckets, which resets their budget.
func (s *MemoryStore) warnNearCapacity() {
	current := s.buckets.Len()
	if s.warned || current < s.threshold() {
		return
	}

	s.warned = true

	s.logger.Warn("Rate limit store approaching max keys",
		slog.Int("current_keys", current),
		slog.Int("max_keys", s.maxKeys),
		slog.Int("threshold_percent", thresholdPercentage),
	)
}
