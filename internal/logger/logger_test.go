package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"Error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestStdLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	ctx := context.Background()

	l.Debug(ctx, "debug line")
	l.Info(ctx, "info line")
	assert.Empty(t, buf.String())

	l.Warn(ctx, "warn line")
	assert.Contains(t, buf.String(), "[WARN] warn line")
}

func TestStdLogger_ErrorAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)

	l.Error(context.Background(), errors.New("boom"), "fetch failed", map[string]interface{}{
		"symbol":   "BTCUSDT",
		"interval": "1h",
	})

	out := buf.String()
	assert.Contains(t, out, "[ERROR] fetch failed | error: boom")
	assert.Contains(t, out, "| interval=1h symbol=BTCUSDT")
}
