// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_session_transitions_total",
		Help: "Capture session state transitions",
	}, []string{"from", "event", "to"})

	sessionRejectedTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_session_rejected_transitions_total",
		Help: "Session operations rejected because the current state does not allow them",
	}, []string{"state", "event"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vitalscan_session_state",
		Help: "Current session state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	recordingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vitalscan_recording_seconds",
		Help:    "Length of finished recordings",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})
)

var sessionStates = []string{"idle", "recording", "reviewing", "uploading", "completed", "failed"}

// RecordTransition counts a successful transition and updates the state gauge.
func RecordTransition(from, event, to string) {
	sessionTransitions.WithLabelValues(from, event, to).Inc()
	SetSessionState(to)
}

// RecordRejectedTransition counts an operation the current state did not allow.
func RecordRejectedTransition(state, event string) {
	sessionRejectedTransitions.WithLabelValues(state, event).Inc()
}

// SetSessionState marks the given state as active.
func SetSessionState(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		sessionState.WithLabelValues(s).Set(v)
	}
}

// ObserveRecording records the length of a finished recording.
func ObserveRecording(seconds float64) {
	recordingSeconds.Observe(seconds)
}
