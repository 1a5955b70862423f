// Package main provides the medfix API service: hospital equipment maintenance
// requests, device and unit catalogs, and user accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/medfix-io/medfix/internal/api"
	"github.com/medfix-io/medfix/internal/api/middleware"
	"github.com/medfix-io/medfix/internal/config"
	"github.com/medfix-io/medfix/internal/events"
	"github.com/medfix-io/medfix/internal/logging"
	"github.com/medfix-io/medfix/internal/policy"
	"github.com/medfix-io/medfix/internal/session"
	"github.com/medfix-io/medfix/internal/storage"
	"github.com/medfix-io/medfix/migrations"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "medfix"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := logging.New(logging.Options{
		Format: serverConfig.LogFormat,
		Level:  serverConfig.LogLevel,
	})

	if err := run(context.Background(), serverConfig, logger); err != nil {
		logger.Error("medfix service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("medfix service stopped")
}

func run(ctx context.Context, serverConfig *api.ServerConfig, logger *slog.Logger) error {
	logger.Info("Starting medfix service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
		slog.String("log_format", serverConfig.LogFormat),
	)

	if err := serverConfig.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	var closers []io.Closer

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	stores, conn, err := openStores(ctx, logger)
	if err != nil {
		return err
	}

	var readiness api.HealthChecker
	if conn != nil {
		readiness = conn
		closers = append(closers, conn)
	}

	closers = append(closers, stores)

	policyFile, err := policy.Load()
	if err != nil {
		closeAll()

		return err
	}

	limiters, err := policy.Build(ctx, policyFile, logger)
	if err != nil {
		closeAll()

		return fmt.Errorf("failed to build rate limiters: %w", err)
	}

	closers = append(closers, limiters)

	publisher := events.New(events.LoadConfig(), logger)
	closers = append(closers, publisher)

	throttleConfig := middleware.LoadConfig()

	logger.Info("Global throttle configured",
		slog.Int("global_rps", throttleConfig.GlobalRPS),
		slog.Int("global_burst", throttleConfig.GlobalBurst),
	)

	sessionConfig := session.LoadConfig()
	sessions := session.NewManager(stores.Sessions, stores.Users, sessionConfig, session.WithLogger(logger))

	logger.Info("Session manager initialized", slog.Duration("ttl", sessionConfig.TTL))

	// Close in reverse order of construction: publisher, limiters, stores, connection.
	shutdownOrder := make([]io.Closer, 0, len(closers))
	for i := len(closers) - 1; i >= 0; i-- {
		shutdownOrder = append(shutdownOrder, closers[i])
	}

	server := api.NewServer(serverConfig, api.Dependencies{
		Stores:    stores,
		Sessions:  sessions,
		Limiters:  limiters,
		Events:    publisher,
		Throttle:  middleware.NewGlobalThrottle(throttleConfig),
		Readiness: readiness,
		Closers:   shutdownOrder,
	}, logger)

	return server.Start()
}

// openStores returns memory stores, or PostgreSQL stores and their connection
// when MEDFIX_STORAGE selects postgres.
func openStores(ctx context.Context, logger *slog.Logger) (*storage.Stores, *storage.Connection, error) {
	storageConfig := storage.LoadConfig()

	if storageConfig.Backend == storage.BackendMemory {
		logger.Warn("Using in-memory storage",
			slog.String("note", "data is lost on restart; set DATABASE_URL for PostgreSQL"),
		)

		stores, err := storage.NewMemoryStoresWithCleanup(storageConfig.CleanupInterval, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stores: %w", err)
		}

		return stores, nil, nil
	}

	conn, err := storage.NewConnection(ctx, storageConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.GetEnvBool("MEDFIX_AUTO_MIGRATE", false) {
		if err := migrations.Up(conn.DB); err != nil {
			_ = conn.Close()

			return nil, nil, err
		}

		logger.Info("Database migrations applied")
	}

	stores, err := storage.NewPostgresStores(conn, storageConfig, logger)
	if err != nil {
		_ = conn.Close()

		return nil, nil, fmt.Errorf("failed to create stores: %w", err)
	}

	logger.Info("PostgreSQL storage initialized",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Duration("session_cleanup_interval", storageConfig.CleanupInterval),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
		slog.Duration("database_conn_max_lifetime", storageConfig.ConnMaxLifetime),
		slog.Duration("database_conn_max_idle_time", storageConfig.ConnMaxIdleTime),
	)

	return stores, conn, nil
}
