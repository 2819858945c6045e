// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vitalscan/internal/config"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult { return CheckResult{Status: m.status} }

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "store", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "ffprobe", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1")
	assert.True(t, m.Ready(context.Background()).Ready)

	m.RegisterChecker(&mockChecker{name: "ffprobe", status: StatusDegraded})
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(&mockChecker{name: "store", status: StatusUnhealthy})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady_StatusCode(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(NewPingChecker("store", func(context.Context) error { return errors.New("database is locked") }))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Ready)
	assert.Equal(t, "database is locked", body.Checks["store"].Error)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBinaryChecker(t *testing.T) {
	c := binaryChecker("ffprobe", "ffprobe", func(string) (string, error) { return "", errors.New("not found") })
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c = binaryChecker("ffprobe", "ffprobe", func(string) (string, error) { return "/usr/bin/ffprobe", nil })
	res := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "/usr/bin/ffprobe", res.Message)
}

func TestManager_SlowCheckTimesOut(t *testing.T) {
	m := NewManager("v1")
	m.checkTimeout = 20 * time.Millisecond
	m.RegisterChecker(NewPingChecker("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	m.RegisterChecker(funcChecker{name: "stuck", fn: func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusHealthy}
	}})
	m.RegisterChecker(&mockChecker{name: "store", status: StatusHealthy})

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Checks["redis"].Status)
	assert.Equal(t, "check timed out", resp.Checks["stuck"].Error)
	assert.Equal(t, StatusHealthy, resp.Checks["store"].Status)
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Capture.FFmpegBin = "definitely-not-ffmpeg"
	cfg.Capture.FFprobeBin = "definitely-not-ffprobe"

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, cfg.SpoolDir())

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	cfg.DataDir = file
	require.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg.DataDir = filepath.Join(t.TempDir(), "missing")
	require.Error(t, PerformStartupChecks(context.Background(), cfg))
}

func TestStartupChecks_MissingBinariesOnlyWarn(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	var looked []string
	checks := startupChecks(cfg, func(bin string) (string, error) {
		looked = append(looked, bin)
		return "", errors.New("not found")
	})

	require.NoError(t, runStartupChecks(context.Background(), checks))
	assert.Equal(t, []string{cfg.Capture.FFmpegBin, cfg.Capture.FFprobeBin}, looked)
}

func TestStartupChecks_StopsAtFirstFatal(t *testing.T) {
	ran := 0
	checks := []startupCheck{
		{name: "first", run: func() error { ran++; return errors.New("broken") }},
		{name: "second", run: func() error { ran++; return nil }},
	}
	err := runStartupChecks(context.Background(), checks)
	require.ErrorContains(t, err, "startup check first: broken")
	assert.Equal(t, 1, ran)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, runStartupChecks(ctx, checks), context.Canceled)
}

func TestUnderDir(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "tmp")
	assert.True(t, underDir(base, base))
	assert.True(t, underDir(filepath.Join(base, "a", "b"), base))
	assert.False(t, underDir(filepath.Join(string(filepath.Separator), "var", "lib"), base))
	assert.False(t, underDir(filepath.Join(string(filepath.Separator), "tmpfoo"), base))
}
