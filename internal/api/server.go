package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medfix-io/medfix/internal/api/middleware"
	"github.com/medfix-io/medfix/internal/events"
	"github.com/medfix-io/medfix/internal/policy"
	"github.com/medfix-io/medfix/internal/session"
	"github.com/medfix-io/medfix/internal/storage"
)

// Version is reported by /health and the X-Medfix-Version header.
var Version = "v1.0.0-dev" //nolint: gochecknoglobals // set with -ldflags at build time

type (
	// HealthChecker reports whether a backing service can serve requests.
	HealthChecker interface {
		HealthCheck(ctx context.Context) error
	}

	// Dependencies are the runtime collaborators of the server.
	Dependencies struct {
		Stores   *storage.Stores
		Sessions session.Provider
		Limiters *policy.Limiters
		Events   events.Publisher
		// Throttle is the process-wide limit. Nil disables it.
		Throttle *middleware.GlobalThrottle
		// Readiness backs /ready. Nil means always ready.
		Readiness HealthChecker
		// Closers are closed in order after the HTTP server has stopped.
		Closers []io.Closer
	}

	// Server represents the HTTP API server.
	Server struct {
		httpServer *http.Server
		mux        *http.ServeMux
		logger     *slog.Logger
		config     *ServerConfig
		deps       Dependencies
		startTime  time.Time
	}
)

// NewServer creates the HTTP server, its routes and its middleware stack.
//
// Configuration (what) is kept apart from dependencies (how): cfg carries only
// ports, timeouts and CORS settings.
func NewServer(cfg *ServerConfig, deps Dependencies, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	server := &Server{
		mux:    mux,
		logger: logger,
		config: cfg,
		deps:   deps,
	}

	server.setupRoutes(mux)

	if deps.Throttle == nil {
		logger.Warn("Global throttle not configured - process-wide rate limiting disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - every response carries X-Correlation-ID
	//   2. Recovery - catch panics in all downstream middleware
	//   3. GlobalRateLimit - shed load before any per-route work
	//   4. RequestLogger - log only requests that got past the throttle
	//   5. CORS - answers preflight requests
	//   6. MaxBodySize - caps the body every validation step reads
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithGlobalRateLimit(deps.Throttle, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
		middleware.WithMaxBodySize(cfg.MaxRequestSize),
	)

	server.httpServer = &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return server
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting medfix API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		s.closeDependencies()

		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server, then releases its dependencies.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)
	}

	s.closeDependencies()

	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}

func (s *Server) closeDependencies() {
	for _, c := range s.deps.Closers {
		if c == nil {
			continue
		}

		if err := c.Close(); err != nil {
			s.logger.Error("Failed to close dependency",
				slog.String("dependency", fmt.Sprintf("%T", c)),
				slog.String("error", err.Error()),
			)
		}
	}
}
