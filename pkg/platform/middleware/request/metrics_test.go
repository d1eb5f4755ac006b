package request

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLatencyMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := LatencyMiddleware(m, func(*http.Request) string { return "/credentials/{id}" })(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
			w.WriteHeader(http.StatusNotFound)
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/credentials/cred_1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/credentials/cred_2", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/credentials/{id}", "GET", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))
	assert.Zero(t, testutil.ToFloat64(m.InFlight))
}

func TestLatencyMiddlewareWithoutMetrics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	w := httptest.NewRecorder()
	LatencyMiddleware(nil, nil)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "unknown", statusClass(0))
}
