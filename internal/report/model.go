// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package report models analysis reports and derives chart-ready views of them.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Report is the structured vitals report returned by the analysis service.
type Report struct {
	ReportID    string           `json:"reportId,omitempty"`
	Vitals      map[string]Vital `json:"vitals"`
	Metadata    Metadata         `json:"metadata"`
	Analysis    Analysis         `json:"analysis"`
	Reliability Reliability      `json:"reliability"`

	// Raw is the payload as received.
	Raw json.RawMessage `json:"-"`
}

// Vital is one measured value.
type Vital struct {
	Value          Reading    `json:"value"`
	Unit           string     `json:"unit,omitempty"`
	Range          *Range     `json:"range,omitempty"`
	Status         string     `json:"status,omitempty"`
	Confidence     Confidence `json:"confidence,omitzero"`
	Interpretation string     `json:"interpretation,omitempty"`
}

type Metadata struct {
	GeneratedAt       string  `json:"generatedAt,omitempty"`
	RecordingDuration float64 `json:"recordingDuration,omitempty"`
}

// Generated parses GeneratedAt as RFC 3339.
func (m Metadata) Generated() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, m.GeneratedAt)
	return t, err == nil
}

type Analysis struct {
	Summary         Summary          `json:"summary"`
	Concerns        []Concern        `json:"concerns,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

type Summary struct {
	OverallStatus string `json:"overallStatus,omitempty"`
}

type Concern struct {
	Type           string `json:"type"`
	Recommendation string `json:"recommendation"`
}

type Recommendation struct {
	Category    string   `json:"category"`
	Suggestions []string `json:"suggestions"`
}

type Reliability struct {
	OverallConfidence  OverallConfidence  `json:"overallConfidence"`
	MeasurementQuality MeasurementQuality `json:"measurementQuality"`
	Limitations        []string           `json:"limitations,omitempty"`
}

type OverallConfidence struct {
	Level   string         `json:"level,omitempty"`
	Score   float64        `json:"score"`
	Factors map[string]any `json:"factors,omitempty"`
}

type MeasurementQuality struct {
	Factors map[string]any `json:"factors,omitempty"`
}

// Decode parses a report payload and keeps a copy of the raw bytes.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	r.Raw = slices.Clone(data)
	return &r, nil
}

// Reading is a scalar value or a composite of named components
// (blood pressure is {"systolic":120,"diastolic":80}).
type Reading struct {
	Scalar     float64
	Components map[string]float64
}

// Composite reports whether the reading has named components.
func (r Reading) Composite() bool { return len(r.Components) > 0 }

// Primary returns the component that represents a composite reading:
// "systolic" when present, else the lexicographically first name.
// Scalar readings return an empty name and the scalar.
func (r Reading) Primary() (string, float64) {
	if !r.Composite() {
		return "", r.Scalar
	}
	if v, ok := r.Components["systolic"]; ok {
		return "systolic", v
	}
	names := r.componentNames()
	return names[0], r.Components[names[0]]
}

// Order returns component names with the primary first and the rest sorted.
func (r Reading) Order() []string {
	if !r.Composite() {
		return nil
	}
	primary, _ := r.Primary()
	out := []string{primary}
	for _, n := range r.componentNames() {
		if n != primary {
			out = append(out, n)
		}
	}
	return out
}

func (r Reading) componentNames() []string {
	names := make([]string, 0, len(r.Components))
	for k := range r.Components {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Display renders the value, composites as "120/80".
func (r Reading) Display() string {
	if !r.Composite() {
		return formatNumber(r.Scalar)
	}
	parts := make([]string, 0, len(r.Components))
	for _, n := range r.Order() {
		parts = append(parts, formatNumber(r.Components[n]))
	}
	return strings.Join(parts, "/")
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = Reading{}
		return nil
	case len(data) > 0 && data[0] == '{':
		var comps map[string]float64
		if err := json.Unmarshal(data, &comps); err != nil {
			return fmt.Errorf("composite reading: %w", err)
		}
		*r = Reading{Components: comps}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("reading %q is not a finite number", s)
		}
		*r = Reading{Scalar: v}
		return nil
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("scalar reading: %w", err)
		}
		*r = Reading{Scalar: v}
		return nil
	}
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if r.Composite() {
		return json.Marshal(r.Components)
	}
	return json.Marshal(r.Scalar)
}

// Bounds is a closed [Low, High] interval.
type Bounds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Range is either a scalar interval or per-component intervals.
type Range struct {
	Bounds
	Components map[string]Bounds
}

// For returns the bounds of a component, or the scalar bounds for "".
func (r *Range) For(component string) (Bounds, bool) {
	if r == nil {
		return Bounds{}, false
	}
	if component == "" {
		return r.Bounds, len(r.Components) == 0
	}
	b, ok := r.Components[component]
	return b, ok
}

var errRangeShape = errors.New("range must have low/high or per-component bounds")

func (r *Range) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("range: %w", err)
	}
	_, hasLow := raw["low"]
	_, hasHigh := raw["high"]
	if hasLow || hasHigh {
		var b Bounds
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("range: %w", err)
		}
		*r = Range{Bounds: b}
		return nil
	}
	comps := make(map[string]Bounds, len(raw))
	for name, msg := range raw {
		var b Bounds
		if err := json.Unmarshal(msg, &b); err != nil {
			return fmt.Errorf("range %s: %w", name, errRangeShape)
		}
		comps[name] = b
	}
	*r = Range{Components: comps}
	return nil
}

func (r Range) MarshalJSON() ([]byte, error) {
	if len(r.Components) > 0 {
		return json.Marshal(r.Components)
	}
	return json.Marshal(r.Bounds)
}

// Confidence is reported either as a level ("high") or a numeric score.
type Confidence struct {
	Level string
	Score *float64
}

// String returns the level, or the score formatted as a percentage.
func (c Confidence) String() string {
	if c.Level != "" {
		return c.Level
	}
	if c.Score != nil {
		s := *c.Score
		if s <= 1 {
			s *= 100
		}
		return formatNumber(math.Round(clamp(s, 0, 100))) + "%"
	}
	return ""
}

// IsZero lets encoding/json omit an empty confidence.
func (c Confidence) IsZero() bool { return c.Level == "" && c.Score == nil }

func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Confidence{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Confidence{Level: s}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	*c = Confidence{Score: &v}
	return nil
}

func (c Confidence) MarshalJSON() ([]byte, error) {
	if c.Score != nil && c.Level == "" {
		return json.Marshal(*c.Score)
	}
	return json.Marshal(c.Level)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
