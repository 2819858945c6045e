// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package report

import "github.com/ManuGH/vitalscan/internal/normalize"

// Tone is the presentation class of a status or factor value.
type Tone string

const (
	ToneAlert    Tone = "alert"
	ToneCaution  Tone = "caution"
	ToneOK       Tone = "ok"
	ToneElevated Tone = "elevated"
	ToneInfo     Tone = "info"
	ToneNeutral  Tone = "neutral"
)

// StatusTone maps a vital status to its tone.
func StatusTone(status string) Tone {
	switch normalize.Token(status) {
	case "high":
		return ToneAlert
	case "low":
		return ToneCaution
	case "normal":
		return ToneOK
	case "moderate":
		return ToneElevated
	default:
		return ToneNeutral
	}
}

// ConfidenceFactorTone maps an overall-confidence factor value to its tone.
func ConfidenceFactorTone(value string) Tone {
	switch normalize.Token(value) {
	case "good":
		return ToneOK
	case "unstable":
		return ToneCaution
	default:
		return ToneInfo
	}
}

// QualityFactorTone maps a measurement-quality factor value to its tone.
func QualityFactorTone(value string) Tone {
	switch normalize.Token(value) {
	case "good", "stable":
		return ToneOK
	case "adequate":
		return ToneInfo
	default:
		return ToneCaution
	}
}

// ConfidenceLevelTone maps a per-vital confidence level to its tone.
func ConfidenceLevelTone(level string) Tone {
	switch normalize.Token(level) {
	case "high":
		return ToneOK
	case "moderate":
		return ToneElevated
	default:
		return ToneCaution
	}
}

// OverallStatusTone maps the summary status; anything but "Needs Attention" reads as ok.
func OverallStatusTone(status string) Tone {
	if normalize.Token(status) == "needs attention" {
		return ToneCaution
	}
	return ToneOK
}
