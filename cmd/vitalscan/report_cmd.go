// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ManuGH/vitalscan/internal/reportstore"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect the local report history",
	}
	cmd.AddCommand(newReportListCmd(opts), newReportShowCmd(opts), newReportExportCmd(opts))
	return cmd
}

func newReportListCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		offset int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || limit > 200 {
				return fmt.Errorf("--limit must be between 1 and 200")
			}
			if offset < 0 {
				return fmt.Errorf("--offset must not be negative")
			}
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			p, err := newPipeline(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			defer p.Close()

			items, total, err := p.reports.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"items": items, "total": total})
			}
			return printSummaries(cmd.OutOrStdout(), items, total)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of reports to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printSummaries(w io.Writer, items []reportstore.Summary, total int) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No reports stored.")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers("REPORT", "STATUS", "DURATION", "STORED")
	for _, s := range items {
		t.Row(s.ReportID, orDash(s.OverallStatus), formatSeconds(s.RecordingDuration), s.CreatedAt.Local().Format(time.DateTime))
	}
	_, err := fmt.Fprintf(w, "%s\n%d of %d\n", t.Render(), len(items), total)
	return err
}

func newReportShowCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON bool
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show a report from the cache, the history or the analysis service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			p, err := newPipeline(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			defer p.Close()

			rep, tier, err := p.reports.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if raw {
				_, err := cmd.OutOrStdout().Write(append(rep.Raw, '\n'))
				return err
			}
			if err := present(cmd.OutOrStdout(), rep, asJSON); err != nil {
				return err
			}
			if !asJSON {
				fmt.Fprintf(cmd.ErrOrStderr(), "(from %s)\n", tier)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the visualization model as JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the report exactly as received")
	cmd.MarkFlagsMutuallyExclusive("json", "raw")
	return cmd
}

func newReportExportCmd(opts *rootOptions) *cobra.Command {
	var (
		out  string
		view string
	)
	cmd := &cobra.Command{
		Use:   "export <report-id>",
		Short: "Write a report to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := reportstore.View(view)
			if v != reportstore.ViewReport && v != reportstore.ViewVisualization {
				return fmt.Errorf("--view must be %q or %q", reportstore.ViewReport, reportstore.ViewVisualization)
			}
			if out == "" {
				out = args[0] + ".json"
			}
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			p, err := newPipeline(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.reports.Export(cmd.Context(), args[0], out, v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", args[0], out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (defaults to <report-id>.json)")
	cmd.Flags().StringVar(&view, "view", string(reportstore.ViewReport), "what to write: report or visualization")
	return cmd
}
