package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusTeapot, map[string]string{"k": "v"}))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}

func TestWriteJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusOK, nil))
	assert.Empty(t, rec.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter) error
		wantStatus int
		wantError  string
	}{
		{"bad request", func(w http.ResponseWriter) error { return WriteBadRequest(w, "nope", nil) }, http.StatusBadRequest, "bad_request"},
		{"unauthorized", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") }, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", func(w http.ResponseWriter) error { return WriteForbidden(w, "") }, http.StatusForbidden, "forbidden"},
		{"not found", func(w http.ResponseWriter) error { return WriteNotFound(w, "") }, http.StatusNotFound, "not_found"},
		{"too many requests", func(w http.ResponseWriter) error { return WriteTooManyRequests(w, "", nil) }, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"internal", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, tt.write(rec))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestWriteOK_WrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteOK(rec, map[string]string{"k": "v"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"k":"v"}}`, rec.Body.String())
}
