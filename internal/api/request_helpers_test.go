package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithParam(name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetPathUUID(t *testing.T) {
	id := uuid.New()

	got, err := getPathUUID(requestWithParam("id", id.String()), "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = getPathUUID(requestWithParam("id", "42"), "id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = getPathUUID(requestWithParam("id", ""), "id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestParseListQueryDefaults(t *testing.T) {
	filter, err := parseListQuery(httptest.NewRequest(http.MethodGet, "/tasks", nil))
	require.NoError(t, err)
	assert.Equal(t, store.TaskFilter{Limit: store.DefaultListLimit}, filter)
}

func TestParseListQueryErrors(t *testing.T) {
	for _, query := range []string{"skip=-3", "limit=abc", "limit=1000", "task_status=archived"} {
		t.Run(query, func(t *testing.T) {
			_, err := parseListQuery(httptest.NewRequest(http.MethodGet, "/tasks?"+query, nil))
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}
