package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// cleanupQueryTimeout bounds a single expired-session purge.
	cleanupQueryTimeout = 30 * time.Second
	// shutdownTimeout bounds how long Close waits for the cleanup goroutine.
	shutdownTimeout = 5 * time.Second
)

// ErrInvalidCleanupInterval is returned when the cleanup interval is not positive.
var ErrInvalidCleanupInterval = errors.New("cleanup interval must be greater than zero")

// sessionSweeper purges expired sessions on a ticker until closed.
type sessionSweeper struct {
	deleteExpired func(ctx context.Context, now time.Time) (int64, error)
	interval      time.Duration
	logger        *slog.Logger
	stop          chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

func startSessionSweeper(
	deleteExpired func(ctx context.Context, now time.Time) (int64, error),
	interval time.Duration,
	logger *slog.Logger,
) *sessionSweeper {
	s := &sessionSweeper{
		deleteExpired: deleteExpired,
		interval:      interval,
		logger:        logger,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	go s.run()

	logger.Info("Started session cleanup goroutine", slog.Duration("interval", interval))

	return s
}

// Close stops the goroutine. Safe to call more than once.
func (s *sessionSweeper) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)

		select {
		case <-s.done:
			s.logger.Info("Session cleanup goroutine stopped gracefully")
		case <-time.After(shutdownTimeout):
			s.logger.Warn("Session cleanup goroutine did not stop within timeout")
		}
	})

	return nil
}

func (s *sessionSweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *sessionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupQueryTimeout)
	defer cancel()

	start := time.Now()

	deleted, err := s.deleteExpired(ctx, start)
	if err != nil {
		s.logger.Error("Failed to clean up expired sessions",
			slog.String("error", err.Error()),
			slog.Int64("rows_deleted_before_error", deleted))

		return
	}

	if deleted > 0 {
		s.logger.Info("Cleaned up expired sessions",
			slog.Int64("rows_deleted", deleted),
			slog.Duration("duration", time.Since(start)))
	}
}
