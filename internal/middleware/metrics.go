package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestObserver receives one call per finished request.
// *metrics.Metrics implements it.
type RequestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics reports every request to obs, labelled with the chi route pattern
// ("/api/books/{id}") rather than the raw path.
func Metrics(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			// The pattern is only complete after routing has finished.
			path := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				path = rctx.RoutePattern()
			}
			if path == "" {
				path = "unmatched"
			}
			obs.ObserveHTTPRequest(r.Method, path, rec.status, time.Since(start))
		})
	}
}
