// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vitalscan/internal/admission"
	"github.com/ManuGH/vitalscan/internal/analysis"
	"github.com/ManuGH/vitalscan/internal/cache"
	"github.com/ManuGH/vitalscan/internal/config"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/media"
	"github.com/ManuGH/vitalscan/internal/reportstore"
	"github.com/ManuGH/vitalscan/internal/session"
	"github.com/ManuGH/vitalscan/internal/telemetry"
)

const closeTimeout = 5 * time.Second

// pipeline is everything one command invocation needs: the session
// controller with its validator and resolver, and the report history.
type pipeline struct {
	cfg       config.AppConfig
	spooler   *media.Spooler
	validator *admission.Validator
	client    *analysis.Client
	session   *session.Controller
	cache     cache.Cache
	store     *reportstore.Store
	reports   *reportstore.Service
	tracing   *telemetry.Provider
}

func newPipeline(ctx context.Context, cfg config.AppConfig, opts *rootOptions) (_ *pipeline, err error) {
	p := &pipeline{cfg: cfg}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	if p.tracing, err = telemetry.NewProvider(ctx, cfg.TelemetryProviderConfig()); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	p.spooler = media.NewSpooler(cfg.SpoolDir())
	var prober media.Prober = media.NewFFprobe(cfg.Capture.FFprobeBin, p.spooler)
	if opts != nil && opts.prober != nil {
		prober = opts.prober
	}
	p.validator = admission.NewValidator(cfg.Limits(), prober)

	if p.client, err = analysis.New(cfg.AnalysisConfig()); err != nil {
		return nil, fmt.Errorf("init analysis client: %w", err)
	}

	p.session, err = session.New(session.Options{
		Validator:    p.validator,
		Resolver:     p.client,
		Spooler:      p.spooler,
		MaxRecording: cfg.Constraints.MaxDuration,
	})
	if err != nil {
		return nil, err
	}

	if p.cache, err = cache.New(cfg.CacheBackendConfig(), xglog.WithComponent("cache")); err != nil {
		return nil, err
	}
	if p.store, err = reportstore.NewStore(cfg.DBPath()); err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	p.reports = reportstore.NewService(p.store, p.cache, p.client, cfg.Cache.TTL)
	return p, nil
}

// Close releases everything the pipeline opened, in reverse order.
func (p *pipeline) Close() {
	logger := xglog.WithComponent("cli")
	var errs []error
	if p.session != nil {
		errs = append(errs, p.session.Close())
	}
	if p.store != nil {
		errs = append(errs, p.store.Close())
	}
	if p.cache != nil {
		errs = append(errs, p.cache.Close())
	}
	if p.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		errs = append(errs, p.tracing.Shutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "cli.close_failed").Msg("shutdown incomplete")
	}
}

// saveReport records a completed session in the history. Failures are
// logged; the report was still delivered.
func (p *pipeline) saveReport(ctx context.Context) {
	snap := p.session.Snapshot()
	if snap.Report == nil {
		return
	}
	meta := reportstore.Meta{SessionID: snap.SessionID, CorrelationID: snap.CorrelationID}
	if err := p.reports.Save(ctx, snap.Report, meta); err != nil {
		logger := xglog.WithComponent("cli")
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "report.save_failed").
			Str(xglog.FieldReportID, snap.ReportID).
			Msg("failed to store report in history")
	}
}
