// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vitalscan/internal/analysis"
	"github.com/ManuGH/vitalscan/internal/cache"
	"github.com/ManuGH/vitalscan/internal/report"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mockReport(t *testing.T, id string) *report.Report {
	t.Helper()
	rep, err := report.Decode([]byte(analysis.DefaultMockReport))
	require.NoError(t, err)
	rep.ReportID = id
	return rep
}

type countingFetcher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	rep     *report.Report
	err     error
}

func (f *countingFetcher) Fetch(ctx context.Context, id string) (*report.Report, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rep, nil
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestStore_SaveGetList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"rpt-a", "rpt-b", "rpt-c"} {
		err := s.Save(ctx, Record{
			ReportID:  id,
			SessionID: "sess-" + id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Payload:   []byte(analysis.DefaultMockReport),
		})
		require.NoError(t, err)
	}

	rec, err := s.Get(ctx, "rpt-b")
	require.NoError(t, err)
	assert.Equal(t, "sess-rpt-b", rec.SessionID)
	assert.True(t, base.Add(time.Minute).Equal(rec.CreatedAt))
	assert.JSONEq(t, analysis.DefaultMockReport, string(rec.Payload))

	list, total, err := s.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "rpt-c", list[0].ReportID, "newest first")
	assert.Equal(t, "Normal", list[0].OverallStatus)
	assert.Equal(t, 29.6, list[0].RecordingDuration)
	assert.Equal(t, "2025-03-14T10:21:07Z", list[0].GeneratedAt)

	list, _, err = s.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rpt-a", list[0].ReportID)

	require.NoError(t, s.Delete(ctx, "rpt-a"))
	_, err = s.Get(ctx, "rpt-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRejectsBadInput(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	assert.Error(t, s.Save(ctx, Record{Payload: []byte(`{}`)}))
	assert.Error(t, s.Save(ctx, Record{ReportID: "x", Payload: []byte(`not json`)}))
}

func TestStore_SaveUpserts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Record{ReportID: "r", Payload: []byte(`{"analysis":{"summary":{"overallStatus":"Normal"}}}`)}))
	require.NoError(t, s.Save(ctx, Record{ReportID: "r", Payload: []byte(`{"analysis":{"summary":{"overallStatus":"Attention"}}}`)}))
	list, total, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Attention", list[0].OverallStatus)
}

func TestService_LookupTiers(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	mem := cache.NewMemoryCache(0)
	defer mem.Close()
	fetcher := &countingFetcher{rep: mockReport(t, "rpt-remote")}
	svc := NewService(store, mem, fetcher, time.Minute)

	require.NoError(t, svc.Save(ctx, mockReport(t, "rpt-local"), Meta{SessionID: "s1"}))

	rep, tier, err := svc.Lookup(ctx, "rpt-local")
	require.NoError(t, err)
	assert.Equal(t, TierCache, tier)
	assert.Equal(t, "rpt-local", rep.ReportID)

	mem.Delete(ctx, "rpt-local")
	_, tier, err = svc.Lookup(ctx, "rpt-local")
	require.NoError(t, err)
	assert.Equal(t, TierStore, tier)
	_, tier, err = svc.Lookup(ctx, "rpt-local")
	require.NoError(t, err)
	assert.Equal(t, TierCache, tier, "store hits warm the cache")

	rep, tier, err = svc.Lookup(ctx, "rpt-remote")
	require.NoError(t, err)
	assert.Equal(t, TierRemote, tier)
	assert.Contains(t, rep.Vitals, "heartRate")

	_, err = store.Get(ctx, "rpt-remote")
	require.NoError(t, err, "fetched reports are persisted")
	assert.Equal(t, 1, fetcher.count())
}

func TestService_LookupMissing(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), nil, nil, 0)
	_, _, err := svc.Lookup(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	pending := &countingFetcher{err: analysis.ErrNotReady}
	svc = NewService(newStore(t), nil, pending, 0)
	_, _, err = svc.Lookup(ctx, "rpt-pending")
	assert.ErrorIs(t, err, analysis.ErrNotReady)

	broken := &countingFetcher{err: &analysis.Error{Kind: analysis.KindTransport, Op: "poll", Err: errors.New("refused")}}
	svc = NewService(newStore(t), nil, broken, 0)
	_, _, err = svc.Lookup(ctx, "rpt-x")
	assert.ErrorIs(t, err, analysis.ErrTransport)
}

func TestService_LookupDeduplicatesConcurrentFetches(t *testing.T) {
	fetcher := &countingFetcher{rep: mockReport(t, "rpt-1"), release: make(chan struct{})}
	svc := NewService(newStore(t), nil, fetcher, 0)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Lookup(context.Background(), "rpt-1")
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, 2*time.Second, time.Millisecond)
	// Give the other callers time to join the in-flight lookup.
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fetcher.count())
}

func TestService_Export(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), nil, nil, 0)
	require.NoError(t, svc.Save(ctx, mockReport(t, "rpt-1"), Meta{}))

	dir := t.TempDir()
	path := filepath.Join(dir, "rpt-1.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
	require.NoError(t, svc.Export(ctx, "rpt-1", path, ViewReport))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, analysis.DefaultMockReport, string(data))

	vpath := filepath.Join(dir, "rpt-1.view.json")
	require.NoError(t, svc.Export(ctx, "rpt-1", vpath, ViewVisualization))
	data, err = os.ReadFile(vpath)
	require.NoError(t, err)
	var view report.VisualizationModel
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, "rpt-1", view.ReportID)
	assert.NotEmpty(t, view.Cards)

	assert.Error(t, svc.Export(ctx, "rpt-1", vpath, View("pdf")))
	assert.ErrorIs(t, svc.Export(ctx, "missing", vpath, ViewReport), ErrNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}
