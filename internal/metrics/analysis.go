// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_upload_total",
		Help: "Sample uploads by outcome",
	}, []string{"outcome"}) // outcome=success|server_error|transport_error

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vitalscan_upload_bytes",
		Help:    "Size of uploaded samples",
		Buckets: prometheus.ExponentialBuckets(256*1024, 2, 9), // 256KiB .. 64MiB
	})

	pollAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_poll_attempts_total",
		Help: "Report poll attempts by result",
	}, []string{"result"}) // result=ready|pending|transport_error

	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vitalscan_resolve_duration_seconds",
		Help:    "Time from first poll to a settled resolution",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30},
	}, []string{"outcome"}) // outcome=ready|timeout|transport_error|canceled

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vitalscan_analysis_request_duration_seconds",
		Help:    "Duration of analysis service requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})
)

// RecordUpload counts one upload outcome.
func RecordUpload(outcome string, sizeBytes int64) {
	uploadTotal.WithLabelValues(outcome).Inc()
	if sizeBytes > 0 {
		uploadBytes.Observe(float64(sizeBytes))
	}
}

// RecordPollAttempt counts one poll attempt.
func RecordPollAttempt(result string) {
	pollAttempts.WithLabelValues(result).Inc()
}

// ObserveResolve records how long a resolution took.
func ObserveResolve(outcome string, seconds float64) {
	resolveDuration.WithLabelValues(outcome).Observe(seconds)
}

// ObserveAnalysisRequest records the duration of one request to the analysis service.
func ObserveAnalysisRequest(operation, status string, seconds float64) {
	httpRequestDuration.WithLabelValues(operation, status).Observe(seconds)
}
