// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package reportstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/vitalscan/internal/analysis"
	"github.com/ManuGH/vitalscan/internal/cache"
	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/metrics"
	"github.com/ManuGH/vitalscan/internal/report"
)

// DefaultCacheTTL bounds how long a report stays in the cache.
const DefaultCacheTTL = 10 * time.Minute

// Tier says where a lookup was answered.
type Tier string

const (
	TierCache  Tier = "cache"
	TierStore  Tier = "store"
	TierRemote Tier = "remote"
)

// Fetcher retrieves a report from the analysis service.
type Fetcher interface {
	Fetch(ctx context.Context, reportID string) (*report.Report, error)
}

// Meta describes where a saved report came from.
type Meta struct {
	SessionID     string
	CorrelationID string
}

// Service looks reports up cache -> store -> remote and deduplicates
// concurrent lookups of the same id.
type Service struct {
	store  *Store
	cache  cache.Cache
	remote Fetcher
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

// NewService wires the tiers. c and remote may be nil.
func NewService(store *Store, c cache.Cache, remote Fetcher, ttl time.Duration) *Service {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		store:  store,
		cache:  c,
		remote: remote,
		ttl:    ttl,
		logger: xglog.WithComponent("reportstore"),
	}
}

// Save persists rep and primes the cache.
func (s *Service) Save(ctx context.Context, rep *report.Report, meta Meta) error {
	if rep == nil || rep.ReportID == "" {
		return errors.New("reportstore: report without id")
	}
	payload, err := payloadOf(rep)
	if err != nil {
		return fmt.Errorf("reportstore: encode: %w", err)
	}
	if err := s.store.Save(ctx, Record{
		ReportID:      rep.ReportID,
		SessionID:     meta.SessionID,
		CorrelationID: meta.CorrelationID,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("reportstore: save %s: %w", rep.ReportID, err)
	}
	s.cache.Set(ctx, rep.ReportID, payload, s.ttl)
	logger := xglog.WithContext(ctx, s.logger)
	logger.Info().
		Str(xglog.FieldEvent, "report.saved").
		Str(xglog.FieldReportID, rep.ReportID).
		Str(xglog.FieldSessionID, meta.SessionID).
		Msg("report stored")
	return nil
}

type lookupResult struct {
	rep  *report.Report
	tier Tier
}

// Lookup returns the report and the tier that answered. While the remote
// report is still being computed the error wraps analysis.ErrNotReady.
func (s *Service) Lookup(ctx context.Context, id string) (*report.Report, Tier, error) {
	v, err, _ := s.group.Do(id, func() (any, error) {
		return s.lookup(ctx, id)
	})
	if err != nil {
		return nil, "", err
	}
	res := v.(lookupResult)
	return res.rep, res.tier, nil
}

func (s *Service) lookup(ctx context.Context, id string) (lookupResult, error) {
	logger := xglog.WithContext(ctx, s.logger)

	if payload, ok := s.cache.Get(ctx, id); ok {
		rep, err := decodeRecord(id, payload)
		if err == nil {
			metrics.RecordReportLookup(string(TierCache))
			return lookupResult{rep, TierCache}, nil
		}
		logger.Warn().Err(err).Str(xglog.FieldReportID, id).Msg("dropping undecodable cache entry")
		s.cache.Delete(ctx, id)
	}

	rec, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		rep, derr := decodeRecord(id, rec.Payload)
		if derr != nil {
			return lookupResult{}, fmt.Errorf("reportstore: stored report %s: %w", id, derr)
		}
		s.cache.Set(ctx, id, rec.Payload, s.ttl)
		metrics.RecordReportLookup(string(TierStore))
		return lookupResult{rep, TierStore}, nil
	case !errors.Is(err, ErrNotFound):
		return lookupResult{}, fmt.Errorf("reportstore: get %s: %w", id, err)
	}

	if s.remote == nil {
		metrics.RecordReportLookup("miss")
		return lookupResult{}, ErrNotFound
	}
	rep, err := s.remote.Fetch(ctx, id)
	if err != nil {
		metrics.RecordReportLookup("miss")
		if errors.Is(err, analysis.ErrNotReady) {
			return lookupResult{}, err
		}
		return lookupResult{}, fmt.Errorf("reportstore: fetch %s: %w", id, err)
	}
	if err := s.Save(ctx, rep, Meta{CorrelationID: xglog.CorrelationIDFromContext(ctx)}); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldReportID, id).Msg("caching fetched report failed")
	}
	metrics.RecordReportLookup(string(TierRemote))
	logger.Info().
		Str(xglog.FieldEvent, "report.fetched").
		Str(xglog.FieldReportID, id).
		Msg("report fetched from analysis service")
	return lookupResult{rep, TierRemote}, nil
}

// List pages through stored reports.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Summary, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

// Delete removes a report from the store and the cache.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.cache.Delete(ctx, id)
	return s.store.Delete(ctx, id)
}
