// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vitalscan/internal/fsutil"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/media"
	"github.com/ManuGH/vitalscan/internal/report"
	"github.com/ManuGH/vitalscan/internal/session"
)

// sessionError shows the user-facing message and keeps the cause for errors.Is.
type sessionError struct {
	err error
}

func (e *sessionError) Error() string { return session.DisplayMessage(e.err) }
func (e *sessionError) Unwrap() error { return e.err }

func userError(err error) error {
	if err == nil {
		return nil
	}
	return &sessionError{err: err}
}

type outputOptions struct {
	asJSON bool
	noSave bool
}

func (o *outputOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the visualization model as JSON")
	cmd.Flags().BoolVar(&o.noSave, "no-save", false, "do not store the report in the local history")
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	out := &outputOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Validate a video file, submit it and print the report",
		Long: `Validates a local video (MP4, WebM or QuickTime, at most the configured size
and duration), uploads it to the analysis service, polls for the report and
renders it.

Examples:
  vitalscan analyze face.mp4
  vitalscan analyze face.webm --json --no-save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			data, mimeType, err := readVideo(args[0], p.validator.Limits().MaxSizeBytes)
			if err != nil {
				return err
			}
			if err := p.session.SelectFile(ctx, data, mimeType, filepath.Base(args[0])); err != nil {
				return userError(err)
			}
			return p.submitAndPresent(ctx, cmd.OutOrStdout(), out)
		},
	}
	out.bind(cmd)
	return cmd
}

// readVideo reads at most one byte past limit so oversized files are still
// classified as too large by the validator.
func readVideo(path string, limit int64) ([]byte, string, error) {
	f, err := fsutil.OpenRegular(path)
	if err != nil {
		return nil, "", fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read video: %w", err)
	}
	return data, media.TypeByExtension(filepath.Ext(path)), nil
}

// submitAndPresent submits the reviewed sample, waits for the report and
// renders it.
func (p *pipeline) submitAndPresent(ctx context.Context, w io.Writer, out *outputOptions) error {
	logger := xglog.WithComponent("cli")
	if err := p.session.Submit(ctx); err != nil {
		return userError(err)
	}
	snap := p.session.Snapshot()
	logger.Info().
		Str(xglog.FieldEvent, "cli.submitted").
		Str(xglog.FieldCorrelationID, snap.CorrelationID).
		Str(xglog.FieldBaseURL, p.client.BaseURL()).
		Msg("waiting for analysis")

	rep, err := p.session.AwaitResult(ctx)
	if err != nil {
		return userError(err)
	}
	if !out.noSave {
		p.saveReport(ctx)
	}
	return present(w, rep, out.asJSON)
}

func present(w io.Writer, rep *report.Report, asJSON bool) error {
	vm := report.Normalize(rep)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(vm)
	}
	return renderReport(w, vm)
}
