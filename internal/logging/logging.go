// Package logging builds the slog logger used across the generator.
package logging

import (
	"io"
	"log/slog"
)

// New creates a logger writing to w. It does not touch the global logger.
// Unknown levels fall back to info and unknown formats to text.
func New(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Level maps the verbose flag to a level name understood by New.
func Level(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}
