package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("unknown"), "defaults to info")
}

func TestConfigureDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Configure("debug")
		Info("hello", "key", "value")
		Debug("hello")
		Warn("hello")
		Error("hello")
		Trace("hello")
	})
}

func TestWithReturnsChildLogger(t *testing.T) {
	child := With("pair", "client")
	assert.NotNil(t, child)
}
