package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel accepts "debug", "info", "warn", "error" (case-insensitive).
// Defaults to info if the level string is unrecognized.
func ParseLevel(level string) slog.Level {
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

// Setup creates a configured *slog.Logger, sets it as the default, and returns
// it with a cleanup function. Text goes to stderr; when file is set, JSON is
// also appended to it.
func Setup(level, file string) (*slog.Logger, func() error) {
	lvl := ParseLevel(level)
	stderr := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})

	if file == "" {
		logger := slog.New(stderr)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger := slog.New(stderr)
		slog.SetDefault(logger)
		logger.Error("failed to open log file, using stderr only", "error", err, "file", file)
		return logger, func() error { return nil }
	}

	logger := slog.New(slogmulti.Fanout(stderr, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: lvl})))
	slog.SetDefault(logger)
	return logger, f.Close
}

// New creates a logger writing text to stderr and JSON to file. It does not
// touch the default logger.
func New(stderr, file io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
	))
}
