// Package middleware holds the HTTP middleware of the catalog UI.
//
// Each middleware has the usual shape:
//
//	func(next http.Handler) http.Handler
//
// and is installed on the chi router in internal/server. Order there matters:
// RequestID must run before Logger so the id is available when the request
// line is logged.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder remembers the status code and body size a handler wrote.
// http.ResponseWriter does not expose either after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	// 200 is what net/http sends if the handler never calls WriteHeader.
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logger logs one line per finished request: method, path, status, duration,
// bytes and the request id. 5xx responses are logged at ERROR, 4xx at WARN.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("request_id", RequestIDFrom(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
			)
		})
	}
}
