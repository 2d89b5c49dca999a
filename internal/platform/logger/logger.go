package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig holds the settings that drive Setup.
type LoggerConfig struct {
	// Level is one of debug, info, warn or error (case-insensitive).
	Level string

	// Output defaults to os.Stdout when nil.
	Output io.Writer
}

// ParseLevel maps a configured level name to a slog.Level.
// The second return value is false for unknown names, in which case info is returned.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup initializes the application's logging system: a structured JSON
// logger at the configured level, installed as the slog default so that
// package-level slog calls share the same handler.
func Setup(cfg LoggerConfig) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		// Use a temporary text logger so the warning is visible even if
		// JSON output is being shipped somewhere else.
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)

	slog.SetDefault(logger)

	return logger, nil
}
