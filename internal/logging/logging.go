// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

const textTimeFormat = "2006-01-02 15:04:05.000"

// Options configures New.
type Options struct {
	Format string
	Level  slog.Leveler
	Output io.Writer
	// Color forces ANSI colour on or off for the text format. Nil detects a terminal.
	Color *bool
}

// New returns a JSON logger, or a tint text logger when the format is "text".
// Colour is enabled only when the output is a terminal.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	if strings.EqualFold(opts.Format, FormatText) {
		color := isTerminal(out)
		if opts.Color != nil {
			color = *opts.Color
		}

		return slog.New(tint.NewHandler(out, &tint.Options{
			Level:      level,
			NoColor:    !color,
			TimeFormat: textTimeFormat,
		}))
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
