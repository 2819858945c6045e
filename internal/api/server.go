// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api is the local HTTP control surface of a running session: it
// drives the session controller and serves the report history.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vitalscan/internal/admission"
	"github.com/ManuGH/vitalscan/internal/api/middleware"
	"github.com/ManuGH/vitalscan/internal/capture"
	"github.com/ManuGH/vitalscan/internal/health"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/reportstore"
	"github.com/ManuGH/vitalscan/internal/session"
)

// trackBuffer is the snapshot backlog the report tracker tolerates.
const trackBuffer = 32

// Config selects the middleware layers.
type Config struct {
	// RateLimit is requests per minute per client; 0 disables.
	RateLimit int
	Tracing   bool
	Logging   bool
}

// Deps are the collaborators of the server. Session, Validator and Reports
// are required.
type Deps struct {
	Session   *session.Controller
	Validator *admission.Validator
	Reports   *reportstore.Service
	Health    *health.Manager
	// OpenStream arms the camera on record/start when none is attached.
	OpenStream func() (capture.Stream, error)
}

// Server wires the router to its dependencies.
type Server struct {
	session    *session.Controller
	validator  *admission.Validator
	reports    *reportstore.Service
	health     *health.Manager
	openStream func() (capture.Stream, error)
	logger     zerolog.Logger
	router     chi.Router

	snaps       <-chan session.Snapshot
	unsubscribe func()
	closeOnce   sync.Once
}

// New builds the router. The server subscribes to the session immediately so
// TrackReports sees every completion after New returns.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Session == nil || deps.Validator == nil || deps.Reports == nil {
		return nil, errors.New("api: session, validator and reports are required")
	}
	s := &Server{
		session:    deps.Session,
		validator:  deps.Validator,
		reports:    deps.Reports,
		health:     deps.Health,
		openStream: deps.OpenStream,
		logger:     xglog.WithComponent("api"),
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}
	s.snaps, s.unsubscribe = deps.Session.Subscribe(trackBuffer)

	opts := []middleware.Option{middleware.WithMetrics(), middleware.WithRateLimit(cfg.RateLimit)}
	if cfg.Logging {
		opts = append(opts, middleware.WithAccessLog())
	}
	if cfg.Tracing {
		opts = append(opts, middleware.WithTracing("vitalscan-api"))
	}
	s.router = s.routes(middleware.NewRouter(opts...))
	return s, nil
}

func (s *Server) routes(r *chi.Mux) chi.Router {
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleGetSession)
		r.Post("/session/file", s.handleSelectFile)
		r.Post("/session/record/start", s.handleStartRecording)
		r.Post("/session/record/stop", s.handleStopRecording)
		r.Post("/session/submit", s.handleSubmit)
		r.Post("/session/retake", s.handleRetake)
		r.Post("/session/reset", s.handleReset)

		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Get("/reports/{id}/visualization", s.handleGetVisualization)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// TrackReports saves every completed report to the history until ctx ends
// or the session closes.
func (s *Server) TrackReports(ctx context.Context) error {
	var saved string
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-s.snaps:
			if !ok {
				return nil
			}
			if snap.State != session.StateCompleted || snap.Report == nil || snap.ReportID == saved {
				continue
			}
			meta := reportstore.Meta{SessionID: snap.SessionID, CorrelationID: snap.CorrelationID}
			if err := s.reports.Save(ctx, snap.Report, meta); err != nil {
				s.logger.Warn().
					Err(err).
					Str(xglog.FieldEvent, "api.report_persist_failed").
					Str(xglog.FieldReportID, snap.ReportID).
					Msg("could not save completed report")
				continue
			}
			saved = snap.ReportID
			s.logger.Info().
				Str(xglog.FieldEvent, "api.report_persisted").
				Str(xglog.FieldReportID, snap.ReportID).
				Str(xglog.FieldSessionID, snap.SessionID).
				Msg("completed report saved")
		}
	}
}

// Close drops the session subscription.
func (s *Server) Close() {
	s.closeOnce.Do(s.unsubscribe)
}
