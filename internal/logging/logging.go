// Package logging builds the slog loggers used across the host.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects a logger's level, format and destination.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // text or json
	Debug  bool      // forces debug level and source locations
	Writer io.Writer // defaults to stderr; stdout belongs to scripts
}

// New creates a logger from opts.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if opts.Debug {
		hopts.Level = slog.LevelDebug
		hopts.AddSource = true
	}
	return slog.New(handler(w, opts.Format, hopts))
}

// NewLogger creates a logger writing to stderr.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return slog.New(handler(os.Stderr, format, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func handler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
