package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		level slog.Level
		ok    bool
	}{
		{"debug", "debug", slog.LevelDebug, true},
		{"info_upper", "INFO", slog.LevelInfo, true},
		{"warn_padded", " warn ", slog.LevelWarn, true},
		{"error", "error", slog.LevelError, true},
		{"unknown_defaults_to_info", "verbose", slog.LevelInfo, false},
		{"empty_defaults_to_info", "", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetup(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var buf bytes.Buffer
	l, err := Setup(LoggerConfig{Level: "warn", Output: &buf})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())

	l.Info("filtered out")
	l.Warn("kept", "task_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "abc", entry["task_id"])
}

func TestContextLogger(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	custom, _ := NewTestLogger(t)

	//nolint:staticcheck // exercising the nil-context branch on purpose
	assert.Same(t, fallback, FromContextOrDefault(nil, fallback))
	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))

	ctx := WithLogger(context.Background(), custom)
	assert.Same(t, custom, FromContextOrDefault(ctx, fallback))
	assert.Same(t, custom, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	assert.Panics(t, func() {
		WithLogger(context.Background(), nil)
	})
}

func TestTestLogBufferEntries(t *testing.T) {
	l, buf := NewTestLogger(t)
	l.Debug("one", "n", 1)
	l.Error("two")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0]["msg"])
	assert.Equal(t, float64(1), entries[0]["n"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}
