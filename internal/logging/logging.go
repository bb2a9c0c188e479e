// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/mrlokans/lovebooks/internal/errorlog"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Options struct {
	Level  string
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// ErrorLog receives every error-level record when set.
	ErrorLog *errorlog.Log
}

// New returns a logger writing in the requested format. Text output is
// colored only when writing to a terminal.
func New(opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		out := opts.Output
		if out == nil {
			out = os.Stderr
		}
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	default:
		out, noColor := opts.Output, true
		if out == nil {
			out = colorable.NewColorable(os.Stderr)
			noColor = !isatty.IsTerminal(os.Stderr.Fd())
		}
		handler = tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    noColor,
		})
	}

	if opts.ErrorLog != nil {
		handler = errorlog.NewHandler(handler, opts.ErrorLog)
	}
	return slog.New(handler)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
