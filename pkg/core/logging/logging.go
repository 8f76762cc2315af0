// Package logging provides structured logging setup using Go's standard
// library log/slog package.
//
// The pipeline logs logfmt (key=value pairs) by default; JSON output can be
// selected for log collectors. String levels (ERROR, WARNING, INFO, DEBUG)
// map to slog levels, defaulting to INFO.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger with the given level and format.
// Supported levels (case-insensitive): ERROR, WARNING, INFO, DEBUG.
// Supported formats: "text" (logfmt, default) and "json".
// Invalid values fall back to INFO / text.
func NewLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for invalid or empty levels (safe default).
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR":
		return slog.LevelError
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "INFO":
		return slog.LevelInfo
	case "DEBUG":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
