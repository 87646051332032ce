// Package logging builds the slog loggers used across the binaries.
//
// Everything logs to stderr: stdout belongs to the MCP stdio transport
// and must stay clean.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a text logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewStderr creates the standard process logger from a config level
// string ("debug", "info", "warn", "error").
func NewStderr(level string) *slog.Logger {
	return New(os.Stderr, LevelFromString(level))
}

// NewDiscard creates a logger that drops everything. Used in tests.
func NewDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))
}

// LevelFromString converts a level name to a slog.Level, defaulting to
// info for unrecognized input.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
