// Package logging provides the broker's structured logging setup, matching
// the teacher's convention of a process-wide *slog.Logger configurable by
// level and format.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a *slog.Logger writing to stderr at level, in either "json"
// or "text" format. Unrecognized levels fall back to info; unrecognized
// formats fall back to text.
func New(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// WithConnection returns a child logger pre-bound with a connection's
// identifying fields, so every log line from that connection's interactor
// carries them without repeating the call.
func WithConnection(logger *slog.Logger, clientID, host string) *slog.Logger {
	return logger.With("client_id", clientID, "host", host)
}
