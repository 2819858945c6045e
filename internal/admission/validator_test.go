// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package admission

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/media"
)

func fixedProber(d time.Duration, err error) (media.Prober, *int) {
	calls := 0
	return media.ProberFunc(func(context.Context, media.Sample) (time.Duration, error) {
		calls++
		return d, err
	}), &calls
}

func sampleOfSize(n int, mimeType string) media.Sample {
	return media.NewSample(make([]byte, n), mimeType, media.SourceFile)
}

func TestValidate_RulesInOrder(t *testing.T) {
	errProbe := errors.New("moov atom not found")
	const mb = 1024 * 1024

	tests := []struct {
		name       string
		sample     media.Sample
		probed     time.Duration
		probeErr   error
		want       Reason
		wantProbes int
	}{
		{"admits mp4 within limits", sampleOfSize(10*mb, "video/mp4"), 10 * time.Second, nil, ReasonAdmitted, 1},
		{"type checked before size", sampleOfSize(60*mb, "video/avi"), 10 * time.Second, nil, ReasonUnsupportedType, 0},
		{"size checked before duration", sampleOfSize(60*mb, "video/mp4"), 40 * time.Second, nil, ReasonTooLarge, 0},
		{"too long", sampleOfSize(1*mb, "video/webm"), 31 * time.Second, nil, ReasonTooLong, 1},
		{"exactly at duration ceiling", sampleOfSize(1*mb, "video/quicktime"), 30 * time.Second, nil, ReasonAdmitted, 1},
		{"exactly at size ceiling", sampleOfSize(50*mb, "video/mp4"), time.Second, nil, ReasonAdmitted, 1},
		{"probe failure", sampleOfSize(1*mb, "video/mp4"), 0, errProbe, ReasonProbeFailed, 1},
		{"mime parameters ignored", sampleOfSize(1*mb, "video/webm;codecs=vp9"), time.Second, nil, ReasonAdmitted, 1},
		{"unbounded duration is too long", sampleOfSize(1*mb, "video/mp4"), time.Duration(math.MaxInt64), nil, ReasonTooLong, 1},
		{"known duration skips probe", sampleOfSize(1*mb, "video/mp4").WithDuration(35 * time.Second), 0, errProbe, ReasonTooLong, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober, calls := fixedProber(tt.probed, tt.probeErr)
			v := NewValidator(DefaultLimits(), prober)

			res := v.Validate(context.Background(), tt.sample)
			assert.Equal(t, tt.want, res.Reason)
			assert.Equal(t, tt.wantProbes, *calls)
			if tt.want == ReasonProbeFailed {
				require.ErrorIs(t, res.AsError(), errProbe)
			}
		})
	}
}

func TestValidate_NoProberIsProbeFailure(t *testing.T) {
	v := NewValidator(DefaultLimits(), nil)
	res := v.Validate(context.Background(), sampleOfSize(10, "video/mp4"))
	assert.Equal(t, ReasonProbeFailed, res.Reason)
	assert.ErrorIs(t, res.Err, ErrNoProber)
}

func TestValidate_NonPositiveDurationIsUnusable(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		prober, _ := fixedProber(d, nil)
		res := NewValidator(DefaultLimits(), prober).Validate(context.Background(), sampleOfSize(10, "video/mp4"))
		assert.Equal(t, ReasonProbeFailed, res.Reason, "duration %v", d)
		assert.ErrorIs(t, res.Err, media.ErrNoDuration)
	}
}

func TestValidate_LogsThroughComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	xglog.Reconfigure(xglog.Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { xglog.Reconfigure(xglog.Config{}) })

	prober, _ := fixedProber(time.Second, nil)
	v := NewValidator(DefaultLimits(), prober)
	v.Validate(context.Background(), sampleOfSize(10, "video/avi"))
	v.Validate(context.Background(), sampleOfSize(10, "video/mp4"))

	out := buf.String()
	assert.Contains(t, out, `"component":"admission"`)
	assert.Contains(t, out, `"admission.rejected"`)
	assert.Contains(t, out, `"admission.admitted"`)
}

func TestValidateRecorded_OnlySizeApplies(t *testing.T) {
	v := NewValidator(Limits{AcceptedTypes: []string{"video/mp4"}, MaxSizeBytes: 100, MaxDuration: time.Second}, nil)

	rec := media.NewSample(make([]byte, 50), "video/webm", media.SourceRecorder).WithDuration(30 * time.Second)
	assert.True(t, v.ValidateRecorded(rec).Admitted())

	big := media.NewSample(make([]byte, 101), "video/webm", media.SourceRecorder)
	assert.Equal(t, ReasonTooLarge, v.ValidateRecorded(big).Reason)
}

func TestRejection_ErrorsAndMessages(t *testing.T) {
	v := NewValidator(DefaultLimits(), nil)

	tests := []struct {
		sample media.Sample
		msg    string
	}{
		{sampleOfSize(1, "image/png"), "Please upload a valid video file (MP4, WebM, or QuickTime)"},
		{sampleOfSize(51*1024*1024, "video/mp4"), "Video must be smaller than 50MB"},
		{sampleOfSize(1, "video/mp4").WithDuration(45 * time.Second), "Video must be shorter than 30 seconds"},
		{sampleOfSize(1, "video/mp4"), "Error validating video. Please try another file."},
	}
	for _, tt := range tests {
		err := v.Validate(context.Background(), tt.sample).AsError()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)

		var rej *Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, tt.msg, rej.Message())
	}
}

func TestSetLimits_AppliesToLaterValidations(t *testing.T) {
	prober, _ := fixedProber(20*time.Second, nil)
	v := NewValidator(DefaultLimits(), prober)
	s := sampleOfSize(10, "video/mp4")

	require.True(t, v.Validate(context.Background(), s).Admitted())

	l := DefaultLimits()
	l.MaxDuration = 15 * time.Second
	v.SetLimits(l)
	assert.Equal(t, ReasonTooLong, v.Validate(context.Background(), s).Reason)
}
