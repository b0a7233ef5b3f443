package logging

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns the project logger writing to w.
// - env=prod: JSON handler without source locations
// - otherwise: text handler with source locations
// level is one of debug/info/warn/error and defaults to warn, which keeps
// CLI output quiet unless asked.
func NewLogger(env, level string, w io.Writer) *slog.Logger {
	lvl := parseLevel(level)

	if strings.EqualFold(strings.TrimSpace(env), "prod") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     lvl,
			AddSource: false,
		}))
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: true,
	}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	case "warn", "warning", "":
		return slog.LevelWarn
	default:
		return slog.LevelWarn
	}
}
