package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) HealthCheck(_ context.Context) error {
	return f.err
}

func TestHandleHealth(t *testing.T) {
	h := NewHealthHandler(&fakePinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleReadiness(t *testing.T) {
	t.Run("database reachable", func(t *testing.T) {
		h := NewHealthHandler(&fakePinger{}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"healthy"`)
	})

	t.Run("database down", func(t *testing.T) {
		h := NewHealthHandler(&fakePinger{err: errors.New("connection refused")}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"unhealthy"`)
	})
}
