// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	xglog "github.com/ManuGH/vitalscan/internal/log"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vitalscan_http_request_duration_seconds",
		Help:    "Control API request latency by route",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120},
	}, []string{"method", "route", "status"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vitalscan_http_requests_in_flight",
		Help: "Control API requests being served",
	})

	uploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vitalscan_http_request_body_bytes",
		Help:    "Declared request body size by route",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	}, []string{"route"})
)

// probe paths log at debug so polling does not drown the access log
var probePaths = map[string]bool{"/healthz": true, "/readyz": true, "/metrics": true}

// Observe measures each request and, depending on the flags, records
// Prometheus metrics and writes an access log line.
func Observe(withMetrics, withLog bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestsInFlight.Inc()
			defer requestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start)

			if withMetrics {
				route := routePattern(r)
				requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.code())).Observe(elapsed.Seconds())
				if r.ContentLength > 0 {
					uploadBytes.WithLabelValues(route).Observe(float64(r.ContentLength))
				}
			}
			if withLog {
				logRequest(r, sw, elapsed)
			}
		})
	}
}

// routePattern keeps label cardinality bounded to the registered routes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func logRequest(r *http.Request, sw *statusWriter, elapsed time.Duration) {
	logger := xglog.WithComponentFromContext(r.Context(), "http")
	ev := logger.Info()
	if sw.code() >= http.StatusInternalServerError {
		ev = logger.Error()
	} else if probePaths[r.URL.Path] {
		ev = logger.Debug()
	}
	ev.Str(xglog.FieldEvent, "http.request").
		Str("method", r.Method).
		Str(xglog.FieldPath, r.URL.Path).
		Int("status", sw.code()).
		Int("bytes", sw.written).
		Dur(xglog.FieldDuration, elapsed).
		Str("remote", r.RemoteAddr).
		Msg("request served")
}
