package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	traceID := GetTraceID(traced)
	assert.Len(t, traceID, 32)
	assert.Empty(t, GetTraceID(ctx), "original context is unchanged")

	assert.Equal(t, "abc", GetTraceID(WithTraceID(ctx, "abc")))
}

func TestGetTraceIDWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestNewTraceIDUnique(t *testing.T) {
	const n = 500
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := NewTraceID()
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
}
