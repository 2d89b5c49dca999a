package shared

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ContextKey is the type of context keys set by the API layer.
type ContextKey string

// TraceIDKey holds the request's trace ID.
const TraceIDKey ContextKey = "traceID"

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// SetTraceID adds a freshly generated trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// NewTraceID returns 32 hex characters from a random UUID.
func NewTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		slog.Error("failed to generate random trace ID, using time-based ID",
			"error", err)
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(id[:])
}
