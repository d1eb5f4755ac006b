package request

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Logger writes one access log line per request: info for success, warn for
// client errors, error for server errors. Healthy probes are not logged.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			status := rec.Status()
			if status < http.StatusInternalServerError && strings.HasPrefix(r.URL.Path, "/health") {
				return
			}
			logger.Log(r.Context(), levelFor(status), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"client", clientNetwork(r),
				"request_id", IDFromContext(r.Context()),
			)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
