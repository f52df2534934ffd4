// Package log provides structured logging for the headless runner.
// It wraps slog with sensible defaults.
package log

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w, as JSON if json is set.
func New(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init initializes the global logger with the specified level.
// JSON output is used when IAROC_LOG_FORMAT=json.
func Init(level string) {
	once.Do(func() {
		logger = New(os.Stderr, level, os.Getenv("IAROC_LOG_FORMAT") == "json")
		slog.SetDefault(logger)
	})
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// Sink forwards controller log lines to a slog logger.
type Sink struct {
	Logger *slog.Logger
}

func (s Sink) Log(msg string) {
	l := s.Logger
	if l == nil {
		l = L()
	}
	l.Info(msg, "component", "control")
}
