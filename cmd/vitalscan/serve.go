// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vitalscan/internal/api"
	"github.com/ManuGH/vitalscan/internal/capture"
	"github.com/ManuGH/vitalscan/internal/config"
	"github.com/ManuGH/vitalscan/internal/daemon"
	"github.com/ManuGH/vitalscan/internal/health"
	xglog "github.com/ManuGH/vitalscan/internal/log"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local control API",
		Long: `Serves the session and report endpoints under /api/v1, plus /healthz,
/readyz and /metrics. The configuration file is watched and reloaded; SIGHUP
forces a reload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			return serve(cmd.Context(), cfg, loader, opts, nil)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}

// serve runs the API until ctx ends. ln replaces cfg.Server.Listen when set.
func serve(ctx context.Context, cfg config.AppConfig, loader *config.Loader, opts *rootOptions, ln net.Listener) error {
	logger := xglog.WithComponent("cli")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return err
	}

	p, err := newPipeline(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("report_store", p.store.Ping))
	if hc, ok := p.cache.(interface{ HealthCheck(context.Context) error }); ok {
		hm.RegisterChecker(health.NewPingChecker("cache", hc.HealthCheck))
	}
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.Capture.FFmpegBin))
	hm.RegisterChecker(health.NewBinaryChecker("ffprobe", cfg.Capture.FFprobeBin))

	device := cfg.DeviceConfig()
	srv, err := api.New(api.Config{
		RateLimit: cfg.Server.RateLimit,
		Tracing:   cfg.Telemetry.Enabled,
		Logging:   true,
	}, api.Deps{
		Session:   p.session,
		Validator: p.validator,
		Reports:   p.reports,
		Health:    hm,
		OpenStream: func() (capture.Stream, error) {
			return opts.openStream(device)
		},
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	app, err := daemon.NewApp(daemon.Options{
		Server:          srv,
		HTTP:            httpSrv,
		Holder:          config.NewHolder(cfg, loader),
		Validator:       p.validator,
		Listener:        ln,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	addr := cfg.Server.Listen
	if ln != nil {
		addr = ln.Addr().String()
	}
	logger.Info().
		Str(xglog.FieldEvent, "cli.serve").
		Str("addr", addr).
		Str(xglog.FieldBaseURL, p.client.BaseURL()).
		Str("cache", p.cache.Backend()).
		Msg("serving control API")

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
