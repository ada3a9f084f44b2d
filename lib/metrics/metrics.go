package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specimens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "specimens_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "specimens_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	DatasetLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "specimens_dataset_load_duration_seconds",
			Help:    "Time spent loading a data source into memory",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	ChartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specimens_charts_total",
			Help: "Chart panels assembled, by chart and outcome (rendered or warning)",
		},
		[]string{"chart", "outcome"},
	)

	ReportRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "specimens_report_rows",
			Help:    "Rows per report run before and after the year filter",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
		[]string{"stage"},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
