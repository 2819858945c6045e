// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package report

import (
	"encoding/json"
	"math"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *Report {
	t.Helper()
	data, err := os.ReadFile("testdata/report.json")
	require.NoError(t, err)
	r, err := Decode(data)
	require.NoError(t, err)
	return r
}

func TestDecode_Fixture(t *testing.T) {
	r := loadFixture(t)

	assert.Equal(t, "rpt-7f3a", r.ReportID)
	require.Len(t, r.Vitals, 6)

	bp := r.Vitals[KeyBloodPressure]
	require.True(t, bp.Value.Composite())
	name, v := bp.Value.Primary()
	assert.Equal(t, "systolic", name)
	assert.Equal(t, 120.0, v)
	assert.Equal(t, "120/80", bp.Value.Display())
	b, ok := bp.Range.For("diastolic")
	require.True(t, ok)
	assert.Equal(t, Bounds{Low: 60, High: 90}, b)

	stress := r.Vitals[KeyStress]
	require.NotNil(t, stress.Confidence.Score)
	assert.Equal(t, "70%", stress.Confidence.String())
	assert.Nil(t, stress.Range)

	ts, ok := r.Metadata.Generated()
	require.True(t, ok)
	assert.Equal(t, 2025, ts.Year())
	assert.NotEmpty(t, r.Raw)
}

func TestReading_PrimaryFallsBackToFirstName(t *testing.T) {
	var r Reading
	require.NoError(t, json.Unmarshal([]byte(`{"b": 2, "a": 1}`), &r))
	name, v := r.Primary()
	assert.Equal(t, "a", name)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, []string{"a", "b"}, r.Order())
}

func TestReading_NumericString(t *testing.T) {
	var r Reading
	require.NoError(t, json.Unmarshal([]byte(`"98.5"`), &r))
	assert.Equal(t, 98.5, r.Scalar)
	require.Error(t, json.Unmarshal([]byte(`"n/a"`), &r))
	for _, raw := range []string{`"NaN"`, `"nan"`, `"Inf"`, `"-Infinity"`} {
		assert.Error(t, json.Unmarshal([]byte(raw), &r), raw)
	}
}

func TestDecode_NonFiniteReadingIsRejected(t *testing.T) {
	_, err := Decode([]byte(`{"vitals":{"heartRate":{"value":"NaN","range":{"low":60,"high":100}}}}`))
	require.ErrorContains(t, err, "not a finite number")
}

func TestNormalize_OutputStaysEncodable(t *testing.T) {
	rep := &Report{Vitals: map[string]Vital{
		KeyHeartRate: {Value: Reading{Scalar: math.NaN()}, Range: &Range{Bounds: Bounds{Low: 60, High: 100}}},
		KeyStress:    {Value: Reading{Scalar: math.NaN()}},
	}}
	vm := Normalize(rep)
	for _, p := range vm.Series {
		assert.Zero(t, p.Value, p.Key)
	}
	_, err := json.Marshal(vm)
	assert.NoError(t, err)
}

func TestScale(t *testing.T) {
	tests := []struct {
		name            string
		value, low, high float64
		want            float64
	}{
		{"midpoint", 80, 60, 100, 50},
		{"below range", 40, 60, 100, 0},
		{"above range", 130, 60, 100, 100},
		{"at low", 60, 60, 100, 0},
		{"at high", 100, 60, 100, 100},
		{"degenerate at low", 5, 5, 5, 0},
		{"degenerate below", 4, 5, 5, 0},
		{"degenerate above", 6, 5, 5, 100},
		{"nan value", math.NaN(), 60, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Scale(tt.value, tt.low, tt.high), 1e-9)
		})
	}
}

func TestProgress(t *testing.T) {
	r := loadFixture(t)

	assert.InDelta(t, 30.0, Progress(r.Vitals[KeyHeartRate]), 1e-9)
	assert.Equal(t, 100.0, Progress(r.Vitals[KeyRespiratory]))
	assert.Equal(t, 0.0, Progress(r.Vitals[KeySpO2]))
	// systolic 120 in [90,140]
	assert.InDelta(t, 60.0, Progress(r.Vitals[KeyBloodPressure]), 1e-9)
	// no range: value clamped
	assert.Equal(t, 35.0, Progress(r.Vitals[KeyStress]))
	assert.Equal(t, 100.0, Progress(Vital{Value: Reading{Scalar: 140}}))
	assert.Equal(t, 0.0, Progress(Vital{Value: Reading{Scalar: -3}}))
}

func TestNormalize_SeriesAndCards(t *testing.T) {
	r := loadFixture(t)
	r.Vitals["bodyTemperature"] = Vital{Value: Reading{Scalar: 36.8}, Unit: "C", Range: &Range{Bounds: Bounds{Low: 36, High: 38}}, Status: "normal"}

	m := Normalize(r)

	var metrics []string
	for _, p := range m.Series {
		metrics = append(metrics, p.Metric)
		assert.GreaterOrEqual(t, p.Value, 0.0)
		assert.LessOrEqual(t, p.Value, FullMark)
		assert.Equal(t, FullMark, p.FullMark)
	}
	assert.Equal(t, []string{"Heart Rate", "HRV", "Respiratory", "SpO2", "Stress", "Blood Pressure", "Body Temperature"}, metrics)

	var titles []string
	for _, c := range m.Cards {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"Heart Rate", "Heart Rate Variability", "Respiratory Rate", "Blood Pressure", "Stress Level", "SpO2", "Body Temperature"}, titles)

	bp := m.Cards[3]
	want := Card{
		Key:            KeyBloodPressure,
		Title:          "Blood Pressure",
		Display:        "120/80",
		Unit:           "mmHg",
		Status:         "normal",
		Tone:           ToneOK,
		Progress:       60,
		RangeLabel:     "90-140",
		Secondary:      map[string]float64{"diastolic": 80},
		Confidence:     "low",
		ConfidenceTone: ToneCaution,
		Interpretation: "Estimated from facial blood flow",
	}
	if diff := cmp.Diff(want, bp); diff != "" {
		t.Errorf("blood pressure card mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, ToneAlert, m.Cards[2].Tone)
	assert.Equal(t, ToneCaution, m.Cards[5].Tone)
	assert.Equal(t, ToneElevated, m.Cards[4].Tone)
	assert.Equal(t, ToneCaution, m.OverallTone)
}

func TestNormalize_Confidence(t *testing.T) {
	m := Normalize(loadFixture(t))

	assert.InDelta(t, 78.0, m.Confidence.Percent, 1e-9)
	assert.Equal(t, "Moderate", m.Confidence.Level)
	assert.Equal(t, []FactorView{
		{Name: "FaceVisibility", Value: "partial", Tone: ToneInfo},
		{Name: "Lighting", Value: "good", Tone: ToneOK},
		{Name: "Movement", Value: "unstable", Tone: ToneCaution},
	}, m.Confidence.Factors)
	assert.Equal(t, []FactorView{
		{Name: "Noise", Value: "high", Tone: ToneCaution},
		{Name: "SignalStrength", Value: "adequate", Tone: ToneInfo},
		{Name: "Stability", Value: "stable", Tone: ToneOK},
	}, m.Confidence.Quality)
}

func TestNormalize_DoesNotMutate(t *testing.T) {
	r := loadFixture(t)
	before, err := json.Marshal(r)
	require.NoError(t, err)

	_ = Normalize(r)

	after, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestNormalize_Nil(t *testing.T) {
	m := Normalize(nil)
	assert.Empty(t, m.Series)
	assert.Empty(t, m.Cards)
}

func TestStatusTone(t *testing.T) {
	assert.Equal(t, ToneAlert, StatusTone("HIGH"))
	assert.Equal(t, ToneCaution, StatusTone("low"))
	assert.Equal(t, ToneOK, StatusTone(" normal "))
	assert.Equal(t, ToneElevated, StatusTone("moderate"))
	assert.Equal(t, ToneNeutral, StatusTone("unknown"))
}
