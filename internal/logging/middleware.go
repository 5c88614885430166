package logging

import (
	"log/slog"
	"net/http"
)

// NewRequestLoggerMiddleware attaches a per-request logger annotated with
// the requested object URL so every store operation triggered by the
// request logs with it.
func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			objectURL := r.URL.Query().Get("url")
			if objectURL == "" {
				objectURL = "<missing>"
			}

			userAgent := r.UserAgent()
			if userAgent == "" {
				userAgent = "<missing>"
			}

			requestLogger := logger.With(
				slog.String("objectURL", objectURL),
				slog.String("method", r.Method),
				slog.String("userAgent", userAgent),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
