package metrics

import (
	"net/http"
	"time"
)

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request counts, latency and in-flight requests.
// Requests routed by a ServeMux are labelled with the matched pattern so
// path parameters do not explode label cardinality.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			path := r.Pattern
			if path == "" {
				path = r.URL.Path
			}
			reg.RecordRequest(r.Method, path, rw.statusCode, time.Since(start).Seconds())
		})
	}
}
