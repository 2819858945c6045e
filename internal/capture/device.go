// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vitalscan/internal/capture/watchdog"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/metrics"
	"github.com/ManuGH/vitalscan/internal/procgroup"
)

const (
	readChunkSize = 64 * 1024
	stopGrace     = 3 * time.Second
)

// DeviceConfig describes a local camera read through ffmpeg.
type DeviceConfig struct {
	FFmpegBin   string
	Device      string // e.g. /dev/video0
	InputFormat string // e.g. v4l2, avfoundation, or file to replay Device
	Width       int
	Height      int
	FrameRate   int
	// MaxDuration is passed to ffmpeg as a hard ceiling in case the caller never stops.
	MaxDuration time.Duration
	// StartTimeout bounds the wait for the first encoded output.
	StartTimeout time.Duration
	// StallTimeout bounds a gap in encoder progress once output has started.
	StallTimeout time.Duration
}

func (c DeviceConfig) withDefaults() DeviceConfig {
	if c.FFmpegBin == "" {
		c.FFmpegBin = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "v4l2"
	}
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 640
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 30
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 10 * time.Second
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 5 * time.Second
	}
	return c
}

// DeviceStream records a local camera into fragmented MP4 via an ffmpeg child process.
type DeviceStream struct {
	id     string
	cfg    DeviceConfig
	logger zerolog.Logger

	mu      sync.Mutex
	closed  bool
	current *deviceRecording
}

// InputFormatFile replays the video file named by Device instead of a camera.
const InputFormatFile = "file"

// Open arms the configured capture source.
func Open(cfg DeviceConfig) (Stream, error) {
	if cfg.InputFormat == InputFormatFile {
		return NewFileStream(cfg.Device)
	}
	return OpenDevice(cfg)
}

// OpenDevice arms the camera. It fails with ErrUnavailable when the device node
// is missing or not accessible, or ffmpeg cannot be found.
func OpenDevice(cfg DeviceConfig) (*DeviceStream, error) {
	cfg = cfg.withDefaults()
	if cfg.InputFormat == "v4l2" {
		f, err := os.Open(cfg.Device) // #nosec G304 -- configured device node
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		_ = f.Close()
	}
	if _, err := exec.LookPath(cfg.FFmpegBin); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	id := uuid.NewString()
	return &DeviceStream{
		id:  id,
		cfg: cfg,
		logger: xglog.WithComponent("capture").With().
			Str(xglog.FieldDevice, cfg.Device).
			Str("stream_id", id).
			Logger(),
	}, nil
}

func (s *DeviceStream) ID() string { return s.id }

func (s *DeviceStream) args() []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostats",
		"-progress", "pipe:2",
		"-f", s.cfg.InputFormat,
		"-framerate", strconv.Itoa(s.cfg.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"-i", s.cfg.Device,
	}
	if s.cfg.MaxDuration > 0 {
		args = append(args, "-t", strconv.FormatFloat(s.cfg.MaxDuration.Seconds()+1, 'f', 0, 64))
	}
	return append(args,
		"-an",
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4", "pipe:1",
	)
}

func (s *DeviceStream) Record(ctx context.Context) (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.current != nil && !s.current.finished() {
		return nil, ErrBusy
	}

	// #nosec G204 -- binary and device come from configuration
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegBin, s.args()...)
	procgroup.Set(cmd)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = stopGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	wd := watchdog.New(s.cfg.StartTimeout, s.cfg.StallTimeout)
	cmd.Stderr = &watchdog.LineWriter{Watchdog: wd, Diag: stderr}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrUnavailable, err)
	}
	s.logger.Info().
		Str(xglog.FieldEvent, "capture.started").
		Int("pid", cmd.Process.Pid).
		Str(xglog.FieldResolution, fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height)).
		Msg("recording started")

	r := &deviceRecording{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		out:    make(chan []byte, 16),
		waitCh: make(chan error, 1),
		done:   make(chan struct{}),
		logger: s.logger,
	}
	s.current = r
	go r.pump(stdout)
	go r.watch(wd)
	return r, nil
}

func (s *DeviceStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cur := s.current
	s.mu.Unlock()

	s.logger.Debug().Str(xglog.FieldEvent, "capture.closed").Msg("stream closed")
	if cur != nil {
		return cur.Stop()
	}
	return nil
}

type deviceRecording struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	out    chan []byte
	waitCh chan error
	done   chan struct{}
	logger zerolog.Logger

	mu       sync.Mutex
	stopping bool
	err      error
	stopOnce sync.Once
	stopErr  error
}

func (r *deviceRecording) pump(stdout io.Reader) {
	defer close(r.done)
	defer close(r.out)

	buf := make([]byte, readChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			metrics.AddCaptureBytes(n)
			r.out <- chunk
		}
		if err != nil {
			break
		}
	}

	werr := r.cmd.Wait()
	r.mu.Lock()
	if !r.stopping && werr != nil && r.err == nil {
		r.err = fmt.Errorf("ffmpeg exited: %w (stderr: %s)", werr, r.stderr.String())
	}
	r.mu.Unlock()
	r.waitCh <- werr
}

// watch stops the recording with an error when ffmpeg never produces output
// or stops making progress.
func (r *deviceRecording) watch(wd *watchdog.Watchdog) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-r.done
		cancel()
	}()

	err := wd.Run(ctx)
	if err == nil {
		return
	}
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return
	}
	r.err = fmt.Errorf("capture %s: %w", wd.State(), err)
	r.mu.Unlock()

	r.logger.Warn().
		Str(xglog.FieldEvent, "capture.watchdog").
		Err(err).
		Msg("encoder made no progress, stopping")
	_ = r.stop()
}

func (r *deviceRecording) Fragments() <-chan []byte { return r.out }
func (r *deviceRecording) MimeType() string         { return "video/mp4" }

// Stop asks ffmpeg to finish the file ('q' on stdin) and escalates to signals.
func (r *deviceRecording) Stop() error {
	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()
	return r.stop()
}

func (r *deviceRecording) stop() error {
	r.stopOnce.Do(func() {

		err := procgroup.Terminate(r.cmd, r.waitCh, func() error {
			_, werr := io.WriteString(r.stdin, "q")
			return werr
		}, stopGrace)
		<-r.done

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			r.stopErr = err
		}
		r.logger.Info().
			Str(xglog.FieldEvent, "capture.stopped").
			AnErr("exit", err).
			Msg("recording stopped")
	})
	return r.stopErr
}

func (r *deviceRecording) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *deviceRecording) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
