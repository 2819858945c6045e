// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_capture_process_stops_total",
		Help: "Capture process terminations by the step that ended them",
	}, []string{"step"}) // step=graceful|sigterm|sigkill

	captureBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vitalscan_capture_bytes_total",
		Help: "Bytes received from capture devices",
	})
)

// RecordProcessStop counts how a capture process was stopped.
func RecordProcessStop(step string) {
	processStops.WithLabelValues(step).Inc()
}

// AddCaptureBytes adds to the captured byte counter.
func AddCaptureBytes(n int) {
	captureBytes.Add(float64(n))
}
