// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vitalscan/internal/capture"
	"github.com/ManuGH/vitalscan/internal/fsutil"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/session"
)

type recordOptions struct {
	duration time.Duration
	submit   bool
	saveTo   string
	output   outputOptions
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	ro := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a face video from the camera",
		Long: `Records from the configured capture device, printing positioning guidance
as the recording progresses. Recording stops after --duration, or at the
configured maximum duration. With capture.inputFormat set to "file" the
video at capture.device is replayed in place of a camera.

Examples:
  vitalscan record --duration 20s --submit
  vitalscan record --save-to face.mp4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := newPipeline(ctx, cfg, opts)
			if err != nil {
				return err
			}
			defer p.Close()

			stream, err := opts.openStream(cfg.DeviceConfig())
			if err != nil {
				return userError(fmt.Errorf("%w: %w", session.ErrPermission, err))
			}
			if err := p.session.AttachStream(stream); err != nil {
				_ = stream.Close()
				return userError(err)
			}
			return p.record(ctx, cmd.OutOrStdout(), ro)
		},
	}
	cmd.Flags().DurationVar(&ro.duration, "duration", 0, "stop after this long (0 records up to the configured maximum)")
	cmd.Flags().BoolVar(&ro.submit, "submit", false, "submit the recording for analysis when it ends")
	cmd.Flags().StringVar(&ro.saveTo, "save-to", "", "copy the recorded video to this path")
	ro.output.bind(cmd)
	return cmd
}

// record runs one recording to completion and optionally submits it.
func (p *pipeline) record(ctx context.Context, w io.Writer, ro *recordOptions) error {
	updates, unsubscribe := p.session.Subscribe(16)
	defer unsubscribe()

	if err := p.session.StartRecording(ctx); err != nil {
		return userError(err)
	}
	start := p.session.Snapshot()
	fmt.Fprintf(w, "Recording (up to %ds)...\n", start.MaxSeconds)
	lastStep := -1
	if start.Guidance != nil {
		lastStep = start.Guidance.Index
		printGuidance(w, *start.Guidance)
	}

	var stopAfter <-chan time.Time
	if ro.duration > 0 {
		t := time.NewTimer(ro.duration)
		defer t.Stop()
		stopAfter = t.C
	}

	for {
		// snapshots may be coalesced; decide on the live state
		st := p.session.Snapshot().State
		if st == session.StateReviewing {
			break
		}
		switch st {
		case session.StateRecording:
		case session.StateFailed:
			return userError(p.session.Err())
		default:
			return fmt.Errorf("recording ended unexpectedly in state %s", st)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopAfter:
			stopAfter = nil
			if err := p.session.StopRecording(); err != nil && !errors.Is(err, session.ErrInvalidTransition) {
				return userError(err)
			}
		case snap, ok := <-updates:
			if !ok {
				return userError(session.ErrClosed)
			}
			if snap.Guidance != nil && snap.Guidance.Index != lastStep {
				lastStep = snap.Guidance.Index
				printGuidance(w, *snap.Guidance)
			}
		}
	}

	snap := p.session.Snapshot()
	if snap.Sample != nil {
		fmt.Fprintf(w, "Captured %s of %s\n", formatBytes(snap.Sample.SizeBytes), snap.Sample.MimeType)
	}
	if ro.saveTo != "" {
		if err := copyPreview(snap.PreviewPath, ro.saveTo); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved recording to %s\n", ro.saveTo)
	}
	if !ro.submit {
		fmt.Fprintln(w, "Not submitted; pass --submit to analyze the recording.")
		return nil
	}
	return p.submitAndPresent(ctx, w, &ro.output)
}

func printGuidance(w io.Writer, g capture.GuidanceStep) {
	fmt.Fprintf(w, "[%d/%d] %s: %s\n", g.Index+1, len(capture.GuidanceSteps()), g.Title, g.Text)
	if g.Hint != "" {
		fmt.Fprintf(w, "      %s\n", g.Hint)
	}
}

func copyPreview(src, dst string) error {
	if src == "" {
		return errors.New("no recording to save")
	}
	data, err := os.ReadFile(src) // #nosec G304 -- spool file owned by this process
	if err != nil {
		return fmt.Errorf("read recording: %w", err)
	}
	if err := fsutil.WriteFileAtomic(dst, data, 0o600); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	logger := xglog.WithComponent("cli")
	logger.Debug().
		Str(xglog.FieldEvent, "cli.recording_saved").
		Str(xglog.FieldPath, dst).
		Int64(xglog.FieldSizeBytes, int64(len(data))).
		Msg("recording saved")
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
