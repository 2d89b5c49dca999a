package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/tasktrack/internal/api/middleware"
	"github.com/phrazzld/tasktrack/internal/api/shared"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	base := slog.New(slog.NewTextHandler(io.Discard, nil))

	var (
		seenTrace  string
		seenLogger *slog.Logger
	)
	handler := middleware.Trace(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = shared.GetTraceID(r.Context())
		seenLogger = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	require.Len(t, seenTrace, 32)
	assert.Equal(t, seenTrace, w.Header().Get(middleware.TraceIDHeader))
	assert.NotNil(t, seenLogger)
	assert.NotSame(t, base, seenLogger, "the request logger is derived from the base logger")

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	assert.NotEqual(t, seenTrace, w2.Header().Get(middleware.TraceIDHeader))
}
