package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that matched no API route.
const unmatchedRoute = "unmatched"

// Submission modes for urlcheck_api_checks_total.
const (
	modeSync  = "sync"
	modeAsync = "async"
	modeBatch = "batch"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlcheck_http_requests_total",
			Help: "API requests by method, route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "urlcheck_http_request_duration_seconds",
			Help:    "API request duration by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "urlcheck_http_requests_in_flight",
			Help: "API requests currently being served.",
		},
	)

	apiChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlcheck_api_checks_total",
			Help: "Checks accepted by the API, by submission mode.",
		},
		[]string{"mode"},
	)

	hopStreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "urlcheck_hop_streams_active",
			Help: "Number of open SSE hop streams.",
		},
	)

	batchPaths = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "urlcheck_batch_paths",
			Help:    "Number of paths per batch check request.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,
		apiChecksTotal,
		hopStreamsActive,
		batchPaths,
	)
	for _, mode := range []string{modeSync, modeAsync, modeBatch} {
		apiChecksTotal.WithLabelValues(mode)
	}
}

// metricsMiddleware records count, duration and concurrency of API requests,
// labelled by chi route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
