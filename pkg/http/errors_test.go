package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/jacobwhite/taskdeck/pkg/http"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteError_SetsStatusAndBody(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeError(t, w)
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "bad request",
			write:      func(w http.ResponseWriter) { pkghttp.WriteBadRequest(w, "Invalid input") },
			wantStatus: 400,
			wantCode:   "bad_request",
			wantMsg:    "Invalid input",
		},
		{
			name:       "unauthorized",
			write:      func(w http.ResponseWriter) { pkghttp.WriteUnauthorized(w, "Invalid credentials") },
			wantStatus: 401,
			wantCode:   "unauthorized",
			wantMsg:    "Invalid credentials",
		},
		{
			name:       "forbidden",
			write:      func(w http.ResponseWriter) { pkghttp.WriteForbidden(w, "Access denied") },
			wantStatus: 403,
			wantCode:   "forbidden",
			wantMsg:    "Access denied",
		},
		{
			name:       "not found",
			write:      func(w http.ResponseWriter) { pkghttp.WriteNotFound(w, "Resource not found") },
			wantStatus: 404,
			wantCode:   "not_found",
			wantMsg:    "Resource not found",
		},
		{
			name:       "conflict",
			write:      func(w http.ResponseWriter) { pkghttp.WriteConflict(w, "Email already exists") },
			wantStatus: 409,
			wantCode:   "conflict",
			wantMsg:    "Email already exists",
		},
		{
			name:       "too many requests",
			write:      func(w http.ResponseWriter) { pkghttp.WriteTooManyRequests(w, "Too many requests") },
			wantStatus: 429,
			wantCode:   "rate_limit_exceeded",
			wantMsg:    "Too many requests",
		},
		{
			name:       "internal error",
			write:      func(w http.ResponseWriter) { pkghttp.WriteInternalError(w, "Internal server error") },
			wantStatus: 500,
			wantCode:   "internal_error",
			wantMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCode, resp.Error)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestWriteRateLimited_IncludesBackoffHints(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteRateLimited(w, 100, time.Minute, 42*time.Second)

	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.RateLimitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Error)
	assert.Equal(t, 100, resp.Limit)
	assert.Equal(t, 60, resp.WindowSeconds)
	assert.Equal(t, 42, resp.RetryAfterSeconds)
}

func TestWriteRateLimited_SubSecondDurationsRoundUp(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteRateLimited(w, 1, 1500*time.Millisecond, 400*time.Millisecond)

	var resp pkghttp.RateLimitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.WindowSeconds)
	assert.Equal(t, 1, resp.RetryAfterSeconds, "a retry hint inside the window must never be zero")
}
