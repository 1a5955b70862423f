package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/medfix-io/medfix/internal/cli"
	"github.com/medfix-io/medfix/internal/storage"
)

const listTimeFormat = "2006-01-02 15:04"

var errPasswordRequired = errors.New("a password is required: use --password, MEDFIXCTL_PASSWORD or --password-stdin")

type userAddCmd struct {
	Email         string `kong:"arg,help='Email address of the account.'"`
	Username      string `kong:"arg,help='Display name of the account.'"`
	Password      string `kong:"env='MEDFIXCTL_PASSWORD',help='Initial password.'"`
	PasswordStdin bool   `kong:"name='password-stdin',help='Read the password from the first line of stdin.'"`
	Role          string `kong:"default='user',enum='user,admin',help='Account role (${enum}).'"`
}

func (c *userAddCmd) Run(app *appContext) error {
	password := c.Password

	if c.PasswordStdin {
		line, err := bufio.NewReader(app.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read password: %w", err)
		}

		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		return errPasswordRequired
	}

	hash, err := storage.HashPassword(password)
	if err != nil {
		return err
	}

	user, err := app.stores.Users.Create(app.ctx, &storage.User{
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		Username:     strings.TrimSpace(c.Username),
		PasswordHash: hash,
		Role:         storage.Role(c.Role),
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("an account with email %q or username %q already exists", c.Email, c.Username)
	}

	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	fmt.Fprintf(app.stdout, "Created %s %s (%s)\n", user.Role, user.Email, user.ID)

	return nil
}

type userLsCmd struct{}

func (c *userLsCmd) Run(app *appContext) error {
	users, err := app.stores.Users.List(app.ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.ID, u.Email, u.Username, string(u.Role), formatTime(u.CreatedAt)})
	}

	return cli.RenderTable(app.stdout, []string{"ID", "Email", "Username", "Role", "Created"}, rows)
}

type deviceLsCmd struct{}

func (c *deviceLsCmd) Run(app *appContext) error {
	devices, err := app.stores.Devices.List(app.ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.ID, d.Name, formatTime(d.DateAdded)})
	}

	return cli.RenderTable(app.stdout, []string{"ID", "Name", "Added"}, rows)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format(listTimeFormat)
}
