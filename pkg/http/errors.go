package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse is the standard JSON error body: a machine-readable code
// plus a human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeBody(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// Common error writers for consistency

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// RateLimitResponse carries the limit parameters so clients can back off intelligently
type RateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	Limit             int    `json:"limit"`
	WindowSeconds     int    `json:"window_seconds"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// WriteRateLimited writes a 429 response describing the exceeded limit.
// Durations round up so a retry hint inside the window is never zero and
// the body agrees with a ceiled Retry-After header.
func WriteRateLimited(w http.ResponseWriter, limit int, window, retryAfter time.Duration) {
	writeBody(w, http.StatusTooManyRequests, RateLimitResponse{
		Error:             "rate_limit_exceeded",
		Message:           "too many requests, please retry later",
		Limit:             limit,
		WindowSeconds:     ceilSeconds(window),
		RetryAfterSeconds: ceilSeconds(retryAfter),
	})
}

func ceilSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func writeBody(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Encoding errors are unrecoverable here; the status line is already out.
	_ = json.NewEncoder(w).Encode(body)
}
