// Package logging builds the process-wide structured logger, using a single
// package-level setup call rather than a logging framework, with log/slog
// so the log_level config knob has somewhere to land.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog.Logger whose minimum level is parsed from level
// ("debug", "info", "warn", "error"; unknown values fall back to "info").
func New(level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
