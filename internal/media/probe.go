// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vitalscan/internal/log"
)

// maxDurationSeconds is the largest length time.Duration can hold.
const maxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

// ErrNoDuration is returned when the container carries no usable duration.
var ErrNoDuration = errors.New("probe: no duration in container metadata")

// Prober reads sample metadata that is not known up front.
type Prober interface {
	ProbeDuration(ctx context.Context, sample Sample) (time.Duration, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, sample Sample) (time.Duration, error)

// ProbeDuration implements Prober.
func (f ProberFunc) ProbeDuration(ctx context.Context, sample Sample) (time.Duration, error) {
	return f(ctx, sample)
}

type runFunc func(ctx context.Context, bin string, args ...string) (stdout, stderr []byte, err error)

// FFprobe implements Prober by spooling the sample and running ffprobe on it.
type FFprobe struct {
	bin     string
	spooler *Spooler
	run     runFunc
	logger  zerolog.Logger
}

// NewFFprobe returns a prober using the given binary ("ffprobe" from PATH when empty).
func NewFFprobe(bin string, spooler *Spooler) *FFprobe {
	if strings.TrimSpace(bin) == "" {
		bin = "ffprobe"
	}
	if spooler == nil {
		spooler = NewSpooler("")
	}
	return &FFprobe{bin: bin, spooler: spooler, run: execRun, logger: xglog.WithComponent("media")}
}

// ProbeDuration implements Prober.
func (p *FFprobe) ProbeDuration(ctx context.Context, sample Sample) (time.Duration, error) {
	h, err := p.spooler.Spool(sample)
	if err != nil {
		return 0, err
	}
	defer func() {
		if rerr := h.Release(); rerr != nil {
			p.logger.Debug().Err(rerr).Str(xglog.FieldPath, h.Path()).Msg("release probe spool")
		}
	}()

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		h.Path(),
	}
	stdout, stderr, err := p.run(ctx, p.bin, args...)
	d, parseErr := parseDuration(stdout)
	if parseErr == nil {
		if err != nil {
			p.logger.Warn().Err(err).
				Str("stderr", truncate(string(stderr), 4096)).
				Msg("ffprobe non-zero exit but JSON accepted")
		}
		return d, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, truncate(string(stderr), 4096))
	}
	return 0, parseErr
}

func execRun(ctx context.Context, bin string, args ...string) ([]byte, []byte, error) {
	// #nosec G204 -- binary comes from configuration; the only variable arg is our own temp path
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	return out, stderr.Bytes(), err
}

type probeData struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Duration  string `json:"duration,omitempty"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// parseDuration prefers the container duration and falls back to the video stream.
func parseDuration(out []byte) (time.Duration, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return 0, ErrNoDuration
	}
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return 0, fmt.Errorf("json decode: %w", err)
	}

	candidates := []string{data.Format.Duration}
	for _, s := range data.Streams {
		if s.CodecType == "video" {
			candidates = append(candidates, s.Duration)
		}
	}
	for _, raw := range candidates {
		if raw == "" || raw == "N/A" {
			continue
		}
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
			continue
		}
		if secs >= maxDurationSeconds {
			return time.Duration(math.MaxInt64), nil
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, ErrNoDuration
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
