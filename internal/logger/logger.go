// Package logger provides the small leveled-logging surface used across
// lspdock. It wraps log/slog behind package-level functions so call sites
// read like logger.Info("message", "key", value) regardless of which
// handler is installed underneath.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog's Debug so the forwarding pipeline can log
// full message bodies without drowning normal debug output.
const LevelTrace = slog.Level(-8)

var base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Configure installs the process-wide logger at the given level
// ("trace", "debug", "info", "warn", "error"). Unknown levels fall back
// to info. Calling it again replaces the process-wide logger; the swap
// is not synchronized with logging calls running on other goroutines.
func Configure(level string) {
	base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps a config/CLI log-level string to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
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

// With returns a child logger carrying the given attributes on every
// record, the way the supervisor tags each direction with its Pair.
func With(args ...any) *slog.Logger {
	return base.With(args...)
}

func Trace(msg string, args ...any) { base.Log(context.Background(), LevelTrace, msg, args...) }
func Debug(msg string, args ...any) { base.Debug(msg, args...) }
func Info(msg string, args ...any)  { base.Info(msg, args...) }
func Warn(msg string, args ...any)  { base.Warn(msg, args...) }
func Error(msg string, args ...any) { base.Error(msg, args...) }
