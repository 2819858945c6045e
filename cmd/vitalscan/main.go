// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command vitalscan captures or selects a face video, submits it to the vitals
// analysis service and presents the resulting report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vitalscan/internal/capture"
	"github.com/ManuGH/vitalscan/internal/config"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/media"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate)
}

// rootOptions carries the persistent flags and the collaborators commands
// build their pipeline from.
type rootOptions struct {
	configPath string
	logLevel   string

	// prober overrides ffprobe when set.
	prober media.Prober
	// openStream arms the camera; defaults to capture.Open.
	openStream func(capture.DeviceConfig) (capture.Stream, error)
}

func openDevice(cfg capture.DeviceConfig) (capture.Stream, error) {
	return capture.Open(cfg)
}

// load reads the configuration and reconfigures logging from it.
func (o *rootOptions) load() (config.AppConfig, *config.Loader, error) {
	loader := config.NewLoader(strings.TrimSpace(o.configPath), version)
	cfg, err := loader.Load()
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	xglog.Reconfigure(xglog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "vitalscan",
		Version: cfg.Version,
	})

	logger := xglog.WithComponent("cli")
	if path := loader.ConfigPath(); path != "" {
		logger.Debug().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str(xglog.FieldPath, path).
			Msg("loaded configuration from file")
	} else {
		logger.Debug().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}
	return cfg, loader, nil
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{openStream: openDevice})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	if opts.openStream == nil {
		opts.openStream = openDevice
	}
	cmd := &cobra.Command{
		Use:   "vitalscan",
		Short: "Contactless vitals scans from a face video",
		Long: `vitalscan records a short face video from a camera (or takes an existing
file), checks it against the upload constraints, submits it to the vitals
analysis service and renders the returned report.

Configuration is read from --config, ${VITALSCAN_DATA}/config.yaml and
VITALSCAN_* environment variables, in that order of increasing precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// safe defaults until the configuration is loaded
			xglog.Configure(xglog.Config{
				Level:   "warn",
				Output:  cmd.ErrOrStderr(),
				Service: "vitalscan",
				Version: version,
			})
		},
	}
	cmd.SetVersionTemplate(versionString() + "\n")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newRecordCmd(opts),
		newReportCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
