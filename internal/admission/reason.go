// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package admission decides whether a candidate video sample may be uploaded.
package admission

import (
	"errors"
	"fmt"
	"time"
)

// Reason is the outcome taxonomy of a validation.
// Values are lowercase for stable metric labels.
type Reason string

const (
	ReasonAdmitted        Reason = "admitted"
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonTooLarge        Reason = "too_large"
	ReasonTooLong         Reason = "too_long"
	ReasonProbeFailed     Reason = "probe_failed"
)

// ErrValidation matches every *Rejection via errors.Is.
var ErrValidation = errors.New("sample rejected")

// Rejection is the error form of a non-admitted Result.
type Rejection struct {
	Reason Reason
	Limits Limits
	// Err is the probe failure for ReasonProbeFailed.
	Err error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("sample rejected (%s): %v", r.Reason, r.Err)
	}
	return fmt.Sprintf("sample rejected (%s)", r.Reason)
}

// Is reports ErrValidation as a match.
func (r *Rejection) Is(target error) bool { return target == ErrValidation }

// Unwrap exposes the underlying probe failure, if any.
func (r *Rejection) Unwrap() error { return r.Err }

// Message is the user-facing text for the rejection.
func (r *Rejection) Message() string {
	switch r.Reason {
	case ReasonUnsupportedType:
		return "Please upload a valid video file (MP4, WebM, or QuickTime)"
	case ReasonTooLarge:
		return fmt.Sprintf("Video must be smaller than %dMB", r.Limits.MaxSizeBytes/(1024*1024))
	case ReasonTooLong:
		return fmt.Sprintf("Video must be shorter than %d seconds", int(r.Limits.MaxDuration/time.Second))
	default:
		return "Error validating video. Please try another file."
	}
}

// Result is the outcome of one validation.
type Result struct {
	Reason Reason
	// Duration is the known or probed sample duration (0 when never established).
	Duration time.Duration
	Err      error
	limits   Limits
}

// Admitted reports whether the sample may proceed.
func (r Result) Admitted() bool { return r.Reason == ReasonAdmitted }

// AsError returns nil for admitted samples and a *Rejection otherwise.
func (r Result) AsError() error {
	if r.Admitted() {
		return nil
	}
	return &Rejection{Reason: r.Reason, Limits: r.limits, Err: r.Err}
}
