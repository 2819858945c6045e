// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ManuGH/vitalscan/internal/report"
)

const (
	barWidth   = 20
	titleWidth = 16
	valueWidth = 14
)

// toneColors are ANSI colors per status tone.
var toneColors = map[report.Tone]lipgloss.Color{
	report.ToneAlert:    lipgloss.Color("9"),
	report.ToneCaution:  lipgloss.Color("11"),
	report.ToneOK:       lipgloss.Color("10"),
	report.ToneElevated: lipgloss.Color("208"),
	report.ToneInfo:     lipgloss.Color("12"),
	report.ToneNeutral:  lipgloss.Color("7"),
}

type styles struct {
	header lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	muted  lipgloss.Style
	r      *lipgloss.Renderer
}

// newStyles binds the styles to w so color is only emitted to terminals.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		value:  r.NewStyle().Foreground(lipgloss.Color("15")),
		muted:  r.NewStyle().Faint(true),
		r:      r,
	}
}

func (s styles) tone(t report.Tone) lipgloss.Style {
	c, ok := toneColors[t]
	if !ok {
		c = toneColors[report.ToneNeutral]
	}
	return s.r.NewStyle().Foreground(c)
}

// renderReport writes a terminal view of the visualization model.
func renderReport(w io.Writer, vm report.VisualizationModel) error {
	s := newStyles(w)
	var sb strings.Builder

	title := "Vitals Report"
	if vm.ReportID != "" {
		title += " " + vm.ReportID
	}
	sb.WriteString(s.header.Render(title))
	sb.WriteString("\n")
	sb.WriteString(formatLine(s, "Overall:", s.tone(vm.OverallTone).Render(orDash(vm.OverallStatus))))
	if vm.RecordingDuration > 0 {
		sb.WriteString(formatLine(s, "Recording:", s.value.Render(formatSeconds(vm.RecordingDuration))))
	}
	if vm.GeneratedAt != "" {
		sb.WriteString(formatLine(s, "Generated:", s.value.Render(formatGenerated(vm.GeneratedAt))))
	}
	sb.WriteString("\n")

	if len(vm.Cards) == 0 {
		sb.WriteString(s.muted.Render("No vitals in this report."))
		sb.WriteString("\n")
	}
	for _, c := range vm.Cards {
		sb.WriteString(renderCard(s, c))
	}

	sb.WriteString(renderConfidence(s, vm.Confidence))
	sb.WriteString(renderFindings(s, vm))

	_, err := io.WriteString(w, sb.String())
	return err
}

func renderCard(s styles, c report.Card) string {
	var sb strings.Builder
	tone := s.tone(c.Tone)

	value := c.Display
	if c.Unit != "" {
		value += " " + c.Unit
	}
	sb.WriteString("  ")
	sb.WriteString(s.label.Width(titleWidth).Render(c.Title))
	sb.WriteString(s.value.Width(valueWidth).Render(value))
	sb.WriteString(" ")
	sb.WriteString(tone.Render(progressBar(c.Progress)))
	if c.Status != "" {
		sb.WriteString(" ")
		sb.WriteString(tone.Render(c.Status))
	}
	sb.WriteString("\n")

	var details []string
	if c.RangeLabel != "" {
		details = append(details, "range "+c.RangeLabel)
	}
	if c.Confidence != "" {
		details = append(details, "confidence "+s.tone(c.ConfidenceTone).Render(c.Confidence))
	}
	if len(c.Secondary) > 0 {
		names := make([]string, 0, len(c.Secondary))
		for n := range c.Secondary {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			details = append(details, fmt.Sprintf("%s %s", n, trimFloat(c.Secondary[n])))
		}
	}
	if len(details) > 0 {
		sb.WriteString(strings.Repeat(" ", titleWidth+2))
		sb.WriteString(s.muted.Render(strings.Join(details, " · ")))
		sb.WriteString("\n")
	}
	if c.Interpretation != "" {
		sb.WriteString(strings.Repeat(" ", titleWidth+2))
		sb.WriteString(c.Interpretation)
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderConfidence(s styles, cv report.ConfidenceView) string {
	if cv.Level == "" && cv.Percent == 0 && len(cv.Factors) == 0 && len(cv.Quality) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n")
	summary := fmt.Sprintf("%s (%s%%)", orDash(cv.Level), trimFloat(math.Round(cv.Percent)))
	sb.WriteString(formatLine(s, "Confidence:", s.tone(report.ConfidenceLevelTone(cv.Level)).Render(summary)))
	for _, f := range cv.Factors {
		sb.WriteString(fmt.Sprintf("    %s %s\n", f.Name+":", s.tone(f.Tone).Render(f.Value)))
	}
	if len(cv.Quality) > 0 {
		sb.WriteString(s.label.Render("Measurement quality:"))
		sb.WriteString("\n")
		for _, f := range cv.Quality {
			sb.WriteString(fmt.Sprintf("    %s %s\n", f.Name+":", s.tone(f.Tone).Render(f.Value)))
		}
	}
	return sb.String()
}

func renderFindings(s styles, vm report.VisualizationModel) string {
	var sb strings.Builder
	if len(vm.Concerns) > 0 {
		sb.WriteString("\n")
		sb.WriteString(s.label.Render("Concerns:"))
		sb.WriteString("\n")
		for _, c := range vm.Concerns {
			sb.WriteString(s.tone(report.ToneCaution).Render("  • " + c.Type))
			sb.WriteString("\n")
			if c.Recommendation != "" {
				sb.WriteString("    " + c.Recommendation + "\n")
			}
		}
	}
	if len(vm.Recommendations) > 0 {
		sb.WriteString("\n")
		sb.WriteString(s.label.Render("Recommendations:"))
		sb.WriteString("\n")
		for _, r := range vm.Recommendations {
			sb.WriteString("  " + r.Category + "\n")
			for _, sug := range r.Suggestions {
				sb.WriteString("    - " + sug + "\n")
			}
		}
	}
	if len(vm.Limitations) > 0 {
		sb.WriteString("\n")
		sb.WriteString(s.label.Render("Limitations:"))
		sb.WriteString("\n")
		for _, l := range vm.Limitations {
			sb.WriteString(s.muted.Render("  - " + l))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatLine(s styles, label, value string) string {
	return fmt.Sprintf("%s %s\n", s.label.Render(label), value)
}

// progressBar renders a [0,100] position as a fixed-width bar.
func progressBar(progress float64) string {
	filled := int(math.Round(max(0, min(100, progress)) / 100 * barWidth))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

func formatSeconds(sec float64) string {
	if sec <= 0 {
		return "-"
	}
	return (time.Duration(sec * float64(time.Second))).Round(100 * time.Millisecond).String()
}

func formatGenerated(raw string) string {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format(time.DateTime)
}

func trimFloat(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
