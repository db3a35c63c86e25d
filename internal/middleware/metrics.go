package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestObserver receives per-request metrics.
type RequestObserver interface {
	RequestStarted()
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Metrics reports every request to obs, labelled by the chi route pattern so
// ids in the path do not explode label cardinality. Mount it outside the
// recoverer so panics are observed as 500.
func Metrics(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			obs.RequestStarted()

			wrapped := wrapWriter(w)
			defer func() {
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if p := rctx.RoutePattern(); p != "" {
						route = p
					}
				}
				obs.ObserveRequest(r.Method, route, wrapped.statusCode, time.Since(start))
			}()
			next.ServeHTTP(wrapped, r)
		})
	}
}
