package request

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records HTTP traffic per route pattern, so credential IDs never
// become label values.
type Metrics struct {
	Latency  *prometheus.HistogramVec
	Requests *prometheus.CounterVec
	InFlight prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "devcred_http_request_duration_seconds",
			Help: "HTTP request latency by route",
			// proving dominates; batches can take tens of seconds
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route", "method"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devcred_http_requests_total",
			Help: "HTTP requests by route and status class",
		}, []string{"route", "method", "status"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "devcred_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

func (m *Metrics) ObserveRequest(route, method string, status int, durationSeconds float64) {
	m.Latency.WithLabelValues(route, method).Observe(durationSeconds)
	m.Requests.WithLabelValues(route, method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// LatencyMiddleware records latency and status per route. route is called
// after the handler so routers can report the matched pattern.
func LatencyMiddleware(m *Metrics, route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.InFlight.Inc()
			defer m.InFlight.Dec()

			rec := record(w)
			next.ServeHTTP(rec, r)
			m.ObserveRequest(route(r), r.Method, rec.Status(), time.Since(start).Seconds())
		})
	}
}
