// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package watchdog

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *mockTicker
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) NewTicker(time.Duration) ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticker = &mockTicker{c: make(chan time.Time)}
	return m.ticker
}

func (m *mockClock) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// tickAfter waits for Run to create its ticker, moves the clock by d and
// delivers one tick.
func (m *mockClock) tickAfter(t *testing.T, d time.Duration) {
	t.Helper()
	var tk *mockTicker
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		tk = m.ticker
		return tk != nil
	}, time.Second, time.Millisecond)
	m.advance(d)
	tk.c <- m.Now()
}

type mockTicker struct {
	c chan time.Time
}

func (m *mockTicker) C() <-chan time.Time { return m.c }
func (m *mockTicker) Stop()               {}

func start(t *testing.T, w *Watchdog) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func newTestWatchdog() (*Watchdog, *mockClock) {
	clock := &mockClock{now: time.Unix(1_700_000_000, 0)}
	w := New(2*time.Second, 5*time.Second)
	w.clock = clock
	return w, clock
}

func TestWatchdog_StartTimeout(t *testing.T) {
	w, clock := newTestWatchdog()
	_, errCh := start(t, w)

	clock.tickAfter(t, 3*time.Second)

	assert.ErrorIs(t, <-errCh, ErrStartTimeout)
	assert.Equal(t, StateTimedOut, w.State())
}

func TestWatchdog_StallTimeout(t *testing.T) {
	w, clock := newTestWatchdog()
	w.lastHeartbeat = clock.Now()

	assert.True(t, w.ParseLine("out_time_us=1000000"))
	assert.Equal(t, StateRunning, w.State())

	clock.advance(4 * time.Second)
	require.NoError(t, w.check())
	assert.Equal(t, StateRunning, w.State())

	clock.advance(2 * time.Second)
	assert.ErrorIs(t, w.check(), ErrStalled)
	assert.Equal(t, StateStalled, w.State())
}

func TestWatchdog_StallEndsRun(t *testing.T) {
	w, clock := newTestWatchdog()
	w.ParseLine("total_size=1")
	_, errCh := start(t, w)

	clock.tickAfter(t, 6*time.Second)
	assert.ErrorIs(t, <-errCh, ErrStalled)
}

func TestWatchdog_RepeatedValuesAreNotProgress(t *testing.T) {
	w, clock := newTestWatchdog()
	w.lastHeartbeat = clock.Now()

	w.ParseLine("total_size=4096")
	clock.advance(3 * time.Second)
	w.ParseLine("total_size=4096")
	w.ParseLine("out_time_ms=0")
	clock.advance(3 * time.Second)

	assert.ErrorIs(t, w.check(), ErrStalled)
}

func TestWatchdog_ProgressEndCompletes(t *testing.T) {
	w, _ := newTestWatchdog()
	w.ParseLine("progress=end")

	_, errCh := start(t, w)
	assert.NoError(t, <-errCh)
	assert.Equal(t, StateCompleted, w.State())

	// a second end marker is harmless
	w.ParseLine("progress=end")
}

func TestWatchdog_ContextCancel(t *testing.T) {
	w, _ := newTestWatchdog()
	cancel, errCh := start(t, w)
	cancel()
	assert.NoError(t, <-errCh)
	assert.Equal(t, StateStarting, w.State())
}

func TestParseLine(t *testing.T) {
	w, _ := newTestWatchdog()
	tests := []struct {
		line     string
		progress bool
	}{
		{"frame=12", true},
		{"out_time_us=40000", true},
		{"  speed=1.01x  ", true},
		{"progress=continue", true},
		{"[v4l2 @ 0x1] Dequeued v4l2 buffer contains corrupted data", false},
		{"Error opening input: No such device", false},
		{"key with space=1", false},
		{"no separator", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.progress, w.ParseLine(tt.line), "line %q", tt.line)
	}
}

func TestLineWriter(t *testing.T) {
	w, _ := newTestWatchdog()
	var diag bytes.Buffer
	lw := &LineWriter{Watchdog: w, Diag: &diag}

	_, err := lw.Write([]byte("out_time_us=500\ntotal_si"))
	require.NoError(t, err)
	_, err = lw.Write([]byte("ze=100\r\nCannot open video device\n\nprogress=continue\n"))
	require.NoError(t, err)

	assert.Equal(t, "Cannot open video device\n", diag.String())
	assert.Equal(t, StateRunning, w.State())
}
