// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package admission

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/media"
	"github.com/ManuGH/vitalscan/internal/metrics"
)

// ErrNoProber is the probe failure used when a duration is needed but no prober is configured.
var ErrNoProber = errors.New("no duration prober configured")

// Limits are the device and network constraints a sample must meet.
type Limits struct {
	AcceptedTypes []string
	MaxSizeBytes  int64
	MaxDuration   time.Duration
}

// DefaultLimits returns the stock constraint table.
func DefaultLimits() Limits {
	return Limits{
		AcceptedTypes: []string{"video/mp4", "video/webm", "video/quicktime"},
		MaxSizeBytes:  50 * 1024 * 1024,
		MaxDuration:   30 * time.Second,
	}
}

func (l Limits) accepts(base string) bool {
	return slices.Contains(l.AcceptedTypes, base)
}

// Validator applies Limits to samples. It keeps no per-sample state.
type Validator struct {
	limits atomic.Pointer[Limits]
	prober media.Prober
	logger zerolog.Logger
}

// NewValidator returns a validator. prober may be nil when only recorder samples are validated.
func NewValidator(limits Limits, prober media.Prober) *Validator {
	v := &Validator{prober: prober, logger: xglog.WithComponent("admission")}
	v.SetLimits(limits)
	return v
}

// SetLimits swaps the active limits; in-flight validations keep the limits they started with.
func (v *Validator) SetLimits(l Limits) {
	l.AcceptedTypes = slices.Clone(l.AcceptedTypes)
	v.limits.Store(&l)
}

// Limits returns the active limits.
func (v *Validator) Limits() Limits {
	return *v.limits.Load()
}

// Validate checks type, then size, then duration, stopping at the first violation.
// The duration is probed only when the sample does not already carry one.
func (v *Validator) Validate(ctx context.Context, sample media.Sample) Result {
	limits := v.Limits()
	res := v.validate(ctx, limits, sample)
	res.limits = limits
	v.observe(sample, res)
	return res
}

// ValidateRecorded checks a sample produced by our own recorder: the recorder
// already enforces type and duration, so only the size ceiling applies.
func (v *Validator) ValidateRecorded(sample media.Sample) Result {
	limits := v.Limits()
	res := Result{Reason: ReasonAdmitted, Duration: sample.Duration(), limits: limits}
	if sample.SizeBytes() > limits.MaxSizeBytes {
		res.Reason = ReasonTooLarge
	}
	v.observe(sample, res)
	return res
}

func (v *Validator) validate(ctx context.Context, limits Limits, sample media.Sample) Result {
	if !limits.accepts(sample.BaseMimeType()) {
		return Result{Reason: ReasonUnsupportedType}
	}
	if sample.SizeBytes() > limits.MaxSizeBytes {
		return Result{Reason: ReasonTooLarge}
	}

	d := sample.Duration()
	if !sample.DurationKnown() {
		if v.prober == nil {
			return Result{Reason: ReasonProbeFailed, Err: ErrNoProber}
		}
		start := time.Now()
		probed, err := v.prober.ProbeDuration(ctx, sample)
		metrics.ObserveProbe(time.Since(start).Seconds())
		if err != nil {
			return Result{Reason: ReasonProbeFailed, Err: err}
		}
		if probed <= 0 {
			return Result{Reason: ReasonProbeFailed, Err: media.ErrNoDuration}
		}
		d = probed
	}
	if d > limits.MaxDuration {
		return Result{Reason: ReasonTooLong, Duration: d}
	}
	return Result{Reason: ReasonAdmitted, Duration: d}
}

func (v *Validator) observe(sample media.Sample, res Result) {
	if res.Admitted() {
		metrics.RecordAdmit(string(sample.Source()))
		v.logger.Debug().
			Str(xglog.FieldEvent, "admission.admitted").
			Str(xglog.FieldMimeType, sample.MimeType()).
			Int64(xglog.FieldSizeBytes, sample.SizeBytes()).
			Dur(xglog.FieldDuration, res.Duration).
			Msg("sample admitted")
		return
	}
	metrics.RecordReject(string(res.Reason), string(sample.Source()))
	ev := v.logger.Info()
	if res.Err != nil {
		ev = ev.Err(res.Err)
	}
	ev.Str(xglog.FieldEvent, "admission.rejected").
		Str(xglog.FieldReason, string(res.Reason)).
		Str(xglog.FieldMimeType, sample.MimeType()).
		Int64(xglog.FieldSizeBytes, sample.SizeBytes()).
		Msg("sample rejected")
}
