package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	pkglogger "github.com/jacobwhite/taskdeck/pkg/logger"
)

// SecureLogger logs one structured entry per request, redacting query
// strings that carry credentials or tokens.
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			logger.LogAttrs(context.Background(), slog.LevelInfo, "http_request",
				slog.String("method", r.Method),
				slog.String("path", loggablePath(r)),
				slog.Int("status", wrapped.Status()),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

func loggablePath(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
		return r.URL.Path + "?[REDACTED]"
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}
