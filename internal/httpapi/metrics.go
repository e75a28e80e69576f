package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paramfn_http_request_duration_seconds",
			Help:    "HTTP response time by route.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"route"},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "paramfn_http_requests_total", Help: "HTTP requests by code, route and method."},
		[]string{"code", "route", "method"},
	)

	computedPoints = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "paramfn_computed_points_total", Help: "Input values evaluated successfully."},
	)

	faultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "paramfn_faults_total", Help: "Faults returned to clients, by kind."},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		requestDuration,
		requestsTotal,
		computedPoints,
		faultsTotal,
	)
}

// metricsHandler serves the default Prometheus registry.
func metricsHandler() http.Handler { return promhttp.Handler() }

// collect records the request counters and latency. The route label is the
// chi route pattern, so function names do not become label values.
func collect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			if r.URL.Path == "/metrics" {
				return
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			requestsTotal.WithLabelValues(strconv.Itoa(ww.Status()), route, r.Method).Inc()
			requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}
