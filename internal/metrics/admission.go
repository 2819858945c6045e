// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics provides Prometheus metrics for vitalscan.
// No session, report or request identifiers are used as labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionAdmitTotal counts admitted samples by source.
	AdmissionAdmitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_admission_admit_total",
		Help: "Total number of admitted video samples, by source.",
	}, []string{"source"})

	// AdmissionRejectTotal counts rejected samples by reason and source.
	AdmissionRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_admission_reject_total",
		Help: "Total number of rejected video samples, by reason and source.",
	}, []string{"reason", "source"})

	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vitalscan_admission_probe_duration_seconds",
		Help:    "Time spent probing sample duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
)

// RecordAdmit increments the admission counter.
func RecordAdmit(source string) {
	AdmissionAdmitTotal.WithLabelValues(source).Inc()
}

// RecordReject increments the rejection counter.
func RecordReject(reason, source string) {
	AdmissionRejectTotal.WithLabelValues(reason, source).Inc()
}

// ObserveProbe records one duration probe.
func ObserveProbe(seconds float64) {
	probeDuration.Observe(seconds)
}
