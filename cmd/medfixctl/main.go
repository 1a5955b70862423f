// Package main provides medfixctl, the administration tool of the medfix
// service. It works directly against the PostgreSQL database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"

	"github.com/medfix-io/medfix/internal/logging"
	"github.com/medfix-io/medfix/internal/storage"
)

const version = "1.0.0-dev"

func main() {
	stdout := colorable.NewColorable(os.Stdout)
	stderr := colorable.NewColorable(os.Stderr)

	if err := run(context.Background(), os.Args[1:], os.Stdin, stdout, stderr, openPostgres); err != nil {
		fmt.Fprintf(stderr, "medfixctl: %v\n", err)
		os.Exit(1)
	}
}

// openPostgres connects to databaseURL and returns PostgreSQL stores. The
// returned closer stops the stores and closes the connection.
func openPostgres(ctx context.Context, databaseURL string) (*storage.Stores, io.Closer, error) {
	cfg := storage.NewConfig(databaseURL)

	conn, err := storage.NewConnection(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.MaskDatabaseURL(), err)
	}

	stores, err := storage.NewPostgresStores(conn, cfg, logging.New(logging.Options{Output: io.Discard}))
	if err != nil {
		_ = conn.Close()

		return nil, nil, err
	}

	return stores, closerFunc(func() error {
		_ = stores.Close()

		return conn.Close()
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
