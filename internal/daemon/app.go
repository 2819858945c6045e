// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon owns the lifecycle of the serve command: the HTTP server,
// the report tracker and configuration reloads.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vitalscan/internal/admission"
	"github.com/ManuGH/vitalscan/internal/api"
	"github.com/ManuGH/vitalscan/internal/config"
	xglog "github.com/ManuGH/vitalscan/internal/log"
)

const defaultShutdownTimeout = 10 * time.Second

// Options are the parts the App runs. Holder and Validator are optional;
// without them reloads are disabled.
type Options struct {
	Server    *api.Server
	HTTP      *http.Server
	Holder    *config.Holder
	Validator *admission.Validator
	// Listener overrides HTTP.Addr when set.
	Listener        net.Listener
	ShutdownTimeout time.Duration
}

// App runs every long-lived subsystem until its context ends.
type App struct {
	opts         Options
	logger       zerolog.Logger
	reloadSignal os.Signal
}

func NewApp(opts Options) (*App, error) {
	if opts.Server == nil {
		return nil, ErrMissingServer
	}
	if opts.HTTP == nil {
		return nil, ErrMissingHTTPServer
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &App{
		opts:         opts,
		logger:       xglog.WithComponent("daemon"),
		reloadSignal: syscall.SIGHUP,
	}, nil
}

// Run blocks until ctx is cancelled or a subsystem fails, then shuts the
// HTTP server down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if h := a.opts.Holder; h != nil {
		// The watcher is best-effort; a missing one only disables hot reload.
		if err := h.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		applyCh := make(chan config.AppConfig, 1)
		h.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})

		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, a.reloadSignal)
			defer signal.Stop(hup)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hup:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal")
					_ = h.Reload(ctx)
				}
			}
		})
	}

	g.Go(func() error { return a.opts.Server.TrackReports(ctx) })

	g.Go(func() error {
		a.logger.Info().
			Str(xglog.FieldEvent, "server.listening").
			Str("addr", a.addr()).
			Msg("control API listening")
		var err error
		if a.opts.Listener != nil {
			err = a.opts.HTTP.Serve(a.opts.Listener)
		} else {
			err = a.opts.HTTP.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.opts.ShutdownTimeout)
		defer cancel()
		a.logger.Info().Str(xglog.FieldEvent, "server.shutdown").Msg("shutting down control API")
		return a.opts.HTTP.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// apply pushes reloadable settings into the running subsystems.
func (a *App) apply(cfg config.AppConfig) {
	if a.opts.Validator != nil {
		a.opts.Validator.SetLimits(cfg.Limits())
	}
	if err := xglog.SetLevel(cfg.Log.Level); err != nil {
		a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.log_level_invalid").Msg("keeping log level")
	}
	a.logger.Info().
		Str(xglog.FieldEvent, "config.applied").
		Int("max_size_mb", cfg.Constraints.MaxSizeMB).
		Dur("max_duration", cfg.Constraints.MaxDuration).
		Msg("reloaded configuration applied")
}

func (a *App) addr() string {
	if a.opts.Listener != nil {
		return a.opts.Listener.Addr().String()
	}
	return a.opts.HTTP.Addr
}
