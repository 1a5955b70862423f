package main

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/medfix-io/medfix/internal/storage"
)

//go:embed devices.txt
var deviceList string

type seedDevicesCmd struct {
	DryRun bool `kong:"name='dry-run',help='Print the devices that would be added without writing them.'"`
}

func (c *seedDevicesCmd) Run(app *appContext) error {
	existing, err := app.stores.Devices.List(app.ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	known := make(map[string]bool, len(existing))
	for _, item := range existing {
		known[strings.ToLower(item.Name)] = true
	}

	var added, skipped int

	for _, name := range deviceNames(deviceList) {
		if known[strings.ToLower(name)] {
			skipped++

			continue
		}

		if c.DryRun {
			fmt.Fprintf(app.stdout, "would add %s\n", name)

			added++

			continue
		}

		_, err := app.stores.Devices.Create(app.ctx, name)
		if errors.Is(err, storage.ErrDuplicate) {
			skipped++

			continue
		}

		if err != nil {
			return fmt.Errorf("failed to add device %q: %w", name, err)
		}

		known[strings.ToLower(name)] = true
		added++
	}

	verb := "Added"
	if c.DryRun {
		verb = "Would add"
	}

	fmt.Fprintf(app.stdout, "%s %d devices, %d already present\n", verb, added, skipped)

	return nil
}

// deviceNames returns the non-blank lines of list, skipping # comments.
func deviceNames(list string) []string {
	var names []string

	scanner := bufio.NewScanner(strings.NewReader(list))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		names = append(names, line)
	}

	return names
}
