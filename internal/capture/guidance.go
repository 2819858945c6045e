// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import "time"

// GuidanceStep is one timed instruction shown while recording.
type GuidanceStep struct {
	Index int           `json:"index"`
	At    time.Duration `json:"-"`
	Title string        `json:"title"`
	Text  string        `json:"text"`
	Hint  string        `json:"hint"`
}

var guidanceSteps = []GuidanceStep{
	{0, 0, "Position Yourself", "Align your face with the camera", "Ensure your face is centered and fully visible"},
	{1, 5 * time.Second, "Hold Steady", "Keep your head still and maintain eye contact", "Avoid any movement to get accurate readings"},
	{2, 10 * time.Second, "Adjust Lighting", "Ensure there is adequate lighting on your face", "Avoid shadows or overly bright light"},
	{3, 15 * time.Second, "Maintain Neutral Expression", "Relax your facial muscles and keep a neutral expression", "Avoid smiling or frowning for accurate measurements"},
	{4, 20 * time.Second, "Steady Gaze", "Look directly at the camera", "Keep your gaze steady to allow accurate scanning"},
	{5, 25 * time.Second, "Final Check", "Keep steady for the final seconds", "You're almost done!"},
}

// GuidanceSteps returns a copy of all steps in order.
func GuidanceSteps() []GuidanceStep {
	out := make([]GuidanceStep, len(guidanceSteps))
	copy(out, guidanceSteps)
	return out
}

// GuidanceAt returns the latest step whose start time has been reached.
func GuidanceAt(elapsed time.Duration) GuidanceStep {
	cur := guidanceSteps[0]
	for _, s := range guidanceSteps[1:] {
		if elapsed < s.At {
			break
		}
		cur = s
	}
	return cur
}
