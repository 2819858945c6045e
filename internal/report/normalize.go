// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package report

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/ManuGH/vitalscan/internal/normalize"
)

// FullMark is the upper bound of every normalized value.
const FullMark = 100.0

// Vital keys with a fixed presentation.
const (
	KeyHeartRate     = "heartRate"
	KeyHRV           = "heartRateVariability"
	KeyRespiratory   = "respiratoryRate"
	KeyBloodPressure = "bloodPressure"
	KeyStress        = "stressLevel"
	KeySpO2          = "spO2"
)

type vitalLabel struct {
	metric string // radar axis label
	title  string // card title
}

var knownVitals = map[string]vitalLabel{
	KeyHeartRate:     {"Heart Rate", "Heart Rate"},
	KeyHRV:           {"HRV", "Heart Rate Variability"},
	KeyRespiratory:   {"Respiratory", "Respiratory Rate"},
	KeyBloodPressure: {"Blood Pressure", "Blood Pressure"},
	KeyStress:        {"Stress", "Stress Level"},
	KeySpO2:          {"SpO2", "SpO2"},
}

var (
	seriesOrder = []string{KeyHeartRate, KeyHRV, KeyRespiratory, KeySpO2, KeyStress}
	cardOrder   = []string{KeyHeartRate, KeyHRV, KeyRespiratory, KeyBloodPressure, KeyStress, KeySpO2}
)

// VisualizationModel is the chart-ready view of a report.
type VisualizationModel struct {
	ReportID          string           `json:"reportId,omitempty"`
	OverallStatus     string           `json:"overallStatus,omitempty"`
	OverallTone       Tone             `json:"overallTone"`
	RecordingDuration float64          `json:"recordingDuration,omitempty"`
	GeneratedAt       string           `json:"generatedAt,omitempty"`
	Series            []SeriesPoint    `json:"series"`
	Cards             []Card           `json:"cards"`
	Confidence        ConfidenceView   `json:"confidence"`
	Concerns          []Concern        `json:"concerns,omitempty"`
	Recommendations   []Recommendation `json:"recommendations,omitempty"`
	Limitations       []string         `json:"limitations,omitempty"`
}

// SeriesPoint is one radar axis.
type SeriesPoint struct {
	Key      string  `json:"key"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
	FullMark float64 `json:"fullMark"`
}

// Card is the per-vital summary.
type Card struct {
	Key            string             `json:"key"`
	Title          string             `json:"title"`
	Display        string             `json:"display"`
	Unit           string             `json:"unit,omitempty"`
	Status         string             `json:"status,omitempty"`
	Tone           Tone               `json:"tone"`
	Progress       float64            `json:"progress"`
	RangeLabel     string             `json:"rangeLabel,omitempty"`
	Secondary      map[string]float64 `json:"secondary,omitempty"`
	Confidence     string             `json:"confidence,omitempty"`
	ConfidenceTone Tone               `json:"confidenceTone,omitempty"`
	Interpretation string             `json:"interpretation,omitempty"`
}

// ConfidenceView summarizes report reliability.
type ConfidenceView struct {
	Level   string       `json:"level,omitempty"`
	Percent float64      `json:"percent"`
	Factors []FactorView `json:"factors,omitempty"`
	Quality []FactorView `json:"quality,omitempty"`
}

// FactorView is one named reliability factor.
type FactorView struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Tone  Tone   `json:"tone"`
}

// Normalize derives the visualization model. The report is not modified.
func Normalize(r *Report) VisualizationModel {
	if r == nil {
		return VisualizationModel{Series: []SeriesPoint{}, Cards: []Card{}}
	}
	m := VisualizationModel{
		ReportID:          r.ReportID,
		OverallStatus:     normalize.Text(r.Analysis.Summary.OverallStatus),
		OverallTone:       OverallStatusTone(r.Analysis.Summary.OverallStatus),
		RecordingDuration: r.Metadata.RecordingDuration,
		GeneratedAt:       r.Metadata.GeneratedAt,
		Series:            make([]SeriesPoint, 0, len(r.Vitals)),
		Cards:             make([]Card, 0, len(r.Vitals)),
		Confidence:        confidenceView(r.Reliability),
		Concerns:          slices.Clone(r.Analysis.Concerns),
		Recommendations:   slices.Clone(r.Analysis.Recommendations),
		Limitations:       slices.Clone(r.Reliability.Limitations),
	}

	for _, key := range ordered(r.Vitals, seriesOrder) {
		m.Series = append(m.Series, SeriesPoint{
			Key:      key,
			Metric:   metricLabel(key),
			Value:    Progress(r.Vitals[key]),
			FullMark: FullMark,
		})
	}
	for _, key := range ordered(r.Vitals, cardOrder) {
		m.Cards = append(m.Cards, card(key, r.Vitals[key]))
	}
	return m
}

// Progress is the vital's position within its reference range, in [0, 100].
// Composite readings use their primary component and its component range.
func Progress(v Vital) float64 {
	component, value := v.Value.Primary()
	b, ok := v.Range.For(component)
	if !ok {
		return clamp(value, 0, FullMark)
	}
	return Scale(value, b.Low, b.High)
}

// Scale maps value from [low, high] onto [0, 100], clamped.
// A degenerate range yields 0 at or below low and 100 above it.
func Scale(value, low, high float64) float64 {
	if high == low {
		if value <= low {
			return 0
		}
		return FullMark
	}
	return clamp((value-low)/(high-low)*FullMark, 0, FullMark)
}

// clamp maps NaN to lo; min and max would propagate it.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(hi, v))
}

// ordered lists the keys of vitals: first those in fixed order, then the rest alphabetically.
func ordered(vitals map[string]Vital, fixed []string) []string {
	out := make([]string, 0, len(vitals))
	for _, k := range fixed {
		if _, ok := vitals[k]; ok {
			out = append(out, k)
		}
	}
	var rest []string
	for k := range vitals {
		if !slices.Contains(fixed, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func metricLabel(key string) string {
	if l, ok := knownVitals[key]; ok {
		return l.metric
	}
	return normalize.Title(key)
}

func cardTitle(key string) string {
	if l, ok := knownVitals[key]; ok {
		return l.title
	}
	return normalize.Title(key)
}

func card(key string, v Vital) Card {
	c := Card{
		Key:            key,
		Title:          cardTitle(key),
		Display:        v.Value.Display(),
		Unit:           v.Unit,
		Status:         normalize.Text(v.Status),
		Tone:           StatusTone(v.Status),
		Progress:       Progress(v),
		RangeLabel:     rangeLabel(v),
		Confidence:     v.Confidence.String(),
		Interpretation: normalize.Text(v.Interpretation),
	}
	if v.Confidence.Level != "" {
		c.ConfidenceTone = ConfidenceLevelTone(v.Confidence.Level)
	}
	if v.Value.Composite() {
		order := v.Value.Order()
		if len(order) > 1 {
			c.Secondary = make(map[string]float64, len(order)-1)
			for _, n := range order[1:] {
				c.Secondary[n] = v.Value.Components[n]
			}
		}
	}
	return c
}

func rangeLabel(v Vital) string {
	component, _ := v.Value.Primary()
	b, ok := v.Range.For(component)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s-%s", formatNumber(b.Low), formatNumber(b.High))
}

func confidenceView(rel Reliability) ConfidenceView {
	score := rel.OverallConfidence.Score
	return ConfidenceView{
		Level:   normalize.Text(rel.OverallConfidence.Level),
		Percent: clamp(score*100, 0, 100),
		Factors: factorViews(rel.OverallConfidence.Factors, ConfidenceFactorTone),
		Quality: factorViews(rel.MeasurementQuality.Factors, QualityFactorTone),
	}
}

func factorViews(factors map[string]any, tone func(string) Tone) []FactorView {
	if len(factors) == 0 {
		return nil
	}
	names := make([]string, 0, len(factors))
	for k := range factors {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]FactorView, 0, len(names))
	for _, n := range names {
		val := fmt.Sprint(factors[n])
		out = append(out, FactorView{Name: normalize.Capitalize(n), Value: val, Tone: tone(val)})
	}
	return out
}
