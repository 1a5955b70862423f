package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/alecthomas/kong"

	"github.com/medfix-io/medfix/internal/storage"
)

// storeOpener connects to the database named by a URL.
type storeOpener func(ctx context.Context, databaseURL string) (*storage.Stores, io.Closer, error)

// appContext is bound into every command's Run method.
type appContext struct {
	ctx    context.Context
	stores *storage.Stores
	stdin  io.Reader
	stdout io.Writer
}

// CLI is the medfixctl command tree.
type CLI struct {
	DatabaseURL string `kong:"name='database-url',env='DATABASE_URL',required,help='PostgreSQL connection string.'"`

	Seed struct {
		Devices seedDevicesCmd `kong:"cmd,help='Add the standard hospital device list to the catalog.'"`
	} `kong:"cmd,help='Load reference data.'"`

	User struct {
		Add userAddCmd `kong:"cmd,help='Create an account.'"`
		Ls  userLsCmd  `kong:"cmd,aliases='list',help='List accounts.'"`
	} `kong:"cmd,help='Manage accounts.'"`

	Device struct {
		Ls deviceLsCmd `kong:"cmd,aliases='list',help='List catalog devices.'"`
	} `kong:"cmd,help='Inspect the device catalog.'"`

	Version kong.VersionFlag `kong:"help='Output version information and exit.'"`
}

func newParser(c *CLI, stdout, stderr io.Writer) (*kong.Kong, error) {
	return kong.New(c,
		kong.Name("medfixctl"),
		kong.Description("Administer a medfix database."),
		kong.UsageOnError(),
		kong.DefaultEnvars("MEDFIXCTL"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
	)
}

// run parses args, opens the stores and executes the selected command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, open storeOpener) (err error) {
	c := &CLI{}

	parser, err := newParser(c, stdout, stderr)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	stores, closer, err := open(ctx, c.DatabaseURL)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close database: %w", cerr))
		}
	}()

	return kctx.Run(&appContext{ctx: ctx, stores: stores, stdin: stdin, stdout: stdout})
}
