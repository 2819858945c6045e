// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"time"

	"github.com/ManuGH/vitalscan/internal/capture"
	"github.com/ManuGH/vitalscan/internal/media"
	"github.com/ManuGH/vitalscan/internal/report"
)

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID      string                `json:"sessionId"`
	State          State                 `json:"state"`
	Actions        []Event               `json:"actions"`
	HasStream      bool                  `json:"hasStream"`
	ElapsedSeconds int                   `json:"elapsedSeconds"`
	MaxSeconds     int                   `json:"maxSeconds"`
	Guidance       *capture.GuidanceStep `json:"guidance,omitempty"`
	Sample         *media.Info           `json:"sample,omitempty"`
	PreviewPath    string                `json:"previewPath,omitempty"`
	CorrelationID  string                `json:"correlationId,omitempty"`
	ReportID       string                `json:"reportId,omitempty"`
	Report         *report.Report        `json:"-"`
	Error          string                `json:"error,omitempty"`
	ErrorKind      ErrorKind             `json:"errorKind,omitempty"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Err is the error stored on the session, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID:      c.id,
		State:          c.machine.State(),
		Actions:        c.machine.Allowed(),
		HasStream:      c.stream != nil,
		ElapsedSeconds: c.elapsed,
		MaxSeconds:     c.ceiling,
		CorrelationID:  c.corrID,
		Report:         c.report,
		UpdatedAt:      c.updatedAt,
	}
	if s.State == StateRecording {
		g := capture.GuidanceAt(time.Duration(c.elapsed) * time.Second)
		s.Guidance = &g
	}
	if !c.sample.IsZero() {
		info := c.sample.Info()
		s.Sample = &info
	}
	if c.handle != nil {
		s.PreviewPath = c.handle.Path()
	}
	if c.report != nil {
		s.ReportID = c.report.ReportID
	}
	if c.lastErr != nil {
		s.Error = DisplayMessage(c.lastErr)
		s.ErrorKind = Classify(c.lastErr)
	}
	return s
}

// Subscribe returns a channel receiving a snapshot after every change. Sends
// never block: a subscriber that falls behind misses intermediate snapshots.
// The channel is closed by cancel or Close.
func (c *Controller) Subscribe(buf int) (<-chan Snapshot, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Snapshot, buf)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// touchLocked stamps the change and notifies subscribers.
func (c *Controller) touchLocked() {
	c.updatedAt = c.clock.Now()
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
