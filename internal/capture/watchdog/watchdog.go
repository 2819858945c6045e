// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package watchdog follows the key=value lines of ffmpeg -progress and fails
// a capture that never starts producing video or stops making progress.
package watchdog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrStartTimeout means no encoded output appeared within the start timeout.
	ErrStartTimeout = errors.New("capture produced no video before the start timeout")
	// ErrStalled means output stopped growing for longer than the stall timeout.
	ErrStalled = errors.New("capture stalled")
)

type State int

const (
	StateStarting State = iota
	StateRunning
	StateStalled
	StateTimedOut
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStalled:
		return "stalled"
	case StateTimedOut:
		return "timed_out"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// Watchdog tracks ffmpeg progress and enforces start and stall timeouts.
type Watchdog struct {
	mu sync.Mutex

	startTimeout  time.Duration
	stallTimeout  time.Duration
	checkInterval time.Duration

	lastOutTimeUs int64
	lastTotalSize int64
	lastHeartbeat time.Time
	state         State

	completed     chan struct{}
	completedOnce sync.Once

	clock clock
}

func New(startTimeout, stallTimeout time.Duration) *Watchdog {
	return &Watchdog{
		startTimeout:  startTimeout,
		stallTimeout:  stallTimeout,
		checkInterval: time.Second,
		completed:     make(chan struct{}),
		clock:         realClock{},
	}
}

// Run checks the timeouts until ctx ends or ffmpeg reports the end of its
// output. It returns ErrStartTimeout or ErrStalled when a timeout trips.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	w.lastHeartbeat = w.clock.Now()
	w.mu.Unlock()

	t := w.clock.NewTicker(w.checkInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.completed:
			return nil
		case <-t.C():
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

// ParseLine consumes one line of -progress output. It reports whether the
// line was a progress key; anything else is diagnostic output.
func (w *Watchdog) ParseLine(line string) bool {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || strings.ContainsAny(key, " \t") || strings.Contains(val, "=") {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch key {
	case "out_time_us", "out_time_ms":
		// both keys carry microseconds
		if us, err := strconv.ParseInt(val, 10, 64); err == nil && us > w.lastOutTimeUs {
			w.lastOutTimeUs = us
			w.heartbeatLocked()
		}
	case "total_size":
		if size, err := strconv.ParseInt(val, 10, 64); err == nil && size > w.lastTotalSize {
			w.lastTotalSize = size
			w.heartbeatLocked()
		}
	case "progress":
		if val == "end" {
			w.state = StateCompleted
			w.completedOnce.Do(func() { close(w.completed) })
		}
	}
	return true
}

func (w *Watchdog) heartbeatLocked() {
	w.lastHeartbeat = w.clock.Now()
	if w.state == StateStarting {
		w.state = StateRunning
	}
}

func (w *Watchdog) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := w.clock.Now().Sub(w.lastHeartbeat)
	switch w.state {
	case StateStarting:
		if w.startTimeout > 0 && elapsed > w.startTimeout {
			w.state = StateTimedOut
			return ErrStartTimeout
		}
	case StateRunning:
		if w.stallTimeout > 0 && elapsed > w.stallTimeout {
			w.state = StateStalled
			return ErrStalled
		}
	}
	return nil
}

func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LineWriter splits written bytes into lines, feeds them to the watchdog and
// forwards non-progress lines to Diag.
type LineWriter struct {
	Watchdog *Watchdog
	Diag     interface{ Write([]byte) (int, error) }

	mu      sync.Mutex
	pending []byte
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.pending = append(lw.pending, p...)
	for {
		i := indexNewline(lw.pending)
		if i < 0 {
			break
		}
		line := string(lw.pending[:i])
		lw.pending = lw.pending[i+1:]
		lw.handle(line)
	}
	return len(p), nil
}

func (lw *LineWriter) handle(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if lw.Watchdog != nil && lw.Watchdog.ParseLine(line) {
		return
	}
	if lw.Diag != nil {
		_, _ = lw.Diag.Write([]byte(line + "\n"))
	}
}

func indexNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' || c == '\r' {
			return i
		}
	}
	return -1
}
