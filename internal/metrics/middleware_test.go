package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMiddleware_LabelsByRoutePattern(t *testing.T) {
	reg := NewRegistry()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/backtests/{id}", func(w http.ResponseWriter, r *http.Request) {})
	h := HTTPMiddleware(reg)(mux)

	for _, id := range []string{"a", "b", "c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/backtests/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("GET", "GET /api/v1/backtests/{id}", "2xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.httpRequestDuration), "one series per pattern")
}

func TestHTTPMiddleware_UnroutedUsesPath(t *testing.T) {
	reg := NewRegistry()
	h := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("POST", "/nowhere", "4xx")))
}

func TestHTTPMiddleware_TracksInFlight(t *testing.T) {
	reg := NewRegistry()
	var during float64
	h := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(reg.httpRequestsInFlight)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, 1.0, during)
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.httpRequestsInFlight))
}

func TestHTTPMiddleware_NilRegistry(t *testing.T) {
	h := HTTPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/backtests", nil))
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestStatusToString(t *testing.T) {
	for status, want := range map[int]string{101: "1xx", 202: "2xx", 304: "3xx", 429: "4xx", 502: "5xx"} {
		assert.Equal(t, want, statusToString(status), "status %d", status)
	}
}
