// Package main provides the medfix database migration tool.
//
// Migrations are embedded in the binary, so the tool needs only DATABASE_URL
// to apply, roll back or inspect the schema.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/medfix-io/medfix/internal/logging"
)

const (
	version = "1.0.0-dev"
	name    = "migrator"
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help information")
		showVersion = flag.Bool("version", false, "Show version information")
		assumeYes   = flag.Bool("yes", false, "Skip the confirmation prompt for drop")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	if *showHelp || flag.NArg() < 1 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Format: cfg.LogFormat})

	runner, err := NewMigrationRunner(cfg, os.Stdout, logger)
	if err != nil {
		logger.Error("Failed to create migration runner", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = executeCommand(flag.Arg(0), runner, confirmer(*assumeYes, os.Stdin, os.Stdout))

	if closeErr := runner.Close(); closeErr != nil {
		logger.Warn("Failed to close migration runner", slog.String("error", closeErr.Error()))
	}

	if err != nil {
		logger.Error("Migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// executeCommand runs command against runner. confirm gates destructive commands.
func executeCommand(command string, runner MigrationRunner, confirm func(prompt string) bool) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		return runner.Status()
	case "version":
		return runner.Version()
	case "drop":
		if !confirm("WARNING: This will drop all tables. Are you sure? (y/N): ") {
			fmt.Println("Operation cancelled.")

			return nil
		}

		return runner.Drop()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// confirmer returns a prompt that reads a y/N answer from in.
func confirmer(assumeYes bool, in io.Reader, out io.Writer) func(string) bool {
	return func(prompt string) bool {
		if assumeYes {
			return true
		}

		_, _ = fmt.Fprint(out, prompt)

		answer, _ := bufio.NewReader(in).ReadString('\n')

		return strings.EqualFold(strings.TrimSpace(answer), "y")
	}
}

func printUsage() {
	fmt.Printf(`%s v%s - Database Migration Tool for medfix

USAGE:
    %s [OPTIONS] COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Roll back the last migration
    status  Show every migration and whether it is applied
    version Show current migration version
    drop    Drop all tables (requires confirmation)

OPTIONS:
    --help     Show this help message
    --version  Show version information
    --yes      Do not prompt before drop

ENVIRONMENT VARIABLES:
    DATABASE_URL       PostgreSQL connection string (REQUIRED)
    MIGRATION_TABLE    Name of migration tracking table
                       (default: schema_migrations)
    MEDFIX_LOG_FORMAT  text or json (default: text)

EXAMPLES:
    %s up            # Apply all pending migrations
    %s status        # Show current migration status
    %s down          # Roll back last migration
    %s --yes drop    # Drop all tables without prompting
`, name, version, name, name, name, name, name)
}
