package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type actorKey struct{}

// actorHolder carries the authenticated actor's email from the auth layer
// back out to the request log. Logger wraps the whole chain while token
// verification happens per-route, so the holder is filled in after Logger
// has already derived the request context.
type actorHolder struct {
	email string
}

func setActor(ctx context.Context, email string) {
	if h, ok := ctx.Value(actorKey{}).(*actorHolder); ok {
		h.email = email
	}
}

// Logger emits one structured log line per request: outcome, timing, size,
// request ID, and the admin who made the call when the token checks out.
// Client errors log at WARN and server errors at ERROR so the dashboard's
// bad requests stand out from genuine failures.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			actor := &actorHolder{}
			r = r.WithContext(context.WithValue(r.Context(), actorKey{}, actor))
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			switch {
			case ww.status >= 500:
				level = slog.LevelError
			case ww.status >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"bytes", ww.bytes,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"remote_addr", r.RemoteAddr,
			}
			if actor.email != "" {
				attrs = append(attrs, "actor", actor.email)
			}
			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}

// responseWriter records the status and byte count on the way through.
// Handlers that never call WriteHeader are logged as 200.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the wrapped writer so Flusher and friends keep working
// through the chain.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
