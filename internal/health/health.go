// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package health serves liveness and readiness probes for the control API.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vitalscan/internal/log"
)

const defaultCheckTimeout = 2 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// rank orders statuses from best to worst.
func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptimeSeconds"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness payload.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one named dependency check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers concurrently, each under its own
// timeout.
type Manager struct {
	version      string
	started      time.Time
	checkTimeout time.Duration
	checkers     []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version, started: time.Now(), checkTimeout: defaultCheckTimeout}
}

// RegisterChecker adds a checker before serving starts.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

func (m *Manager) run(ctx context.Context) (map[string]CheckResult, Status) {
	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(m.checkers))
		worst   = StatusHealthy
		g       errgroup.Group
	)
	for _, c := range m.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
			defer cancel()
			res := c.Check(cctx)
			if cctx.Err() != nil && res.Status == StatusHealthy {
				res = CheckResult{Status: StatusUnhealthy, Error: "check timed out"}
			}

			mu.Lock()
			defer mu.Unlock()
			results[c.Name()] = res
			if res.Status.rank() > worst.rank() {
				worst = res.Status
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, worst
}

// Health is the liveness view. Checks only run when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.started).Seconds()),
		Timestamp: time.Now(),
	}
	if verbose && len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.run(ctx)
	}
	return resp
}

// Ready is false while any check is unhealthy; degraded is still ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{Status: StatusHealthy, Timestamp: time.Now()}
	if len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.run(ctx)
	}
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

// ServeHealth answers 200 while the process is up.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, r, http.StatusOK, m.Health(r.Context(), r.URL.Query().Get("verbose") == "true"))
}

// ServeReady answers 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
		logger := log.WithComponentFromContext(r.Context(), "health")
		logger.Warn().
			Str(log.FieldEvent, "health.not_ready").
			Str("status", string(resp.Status)).
			Msg("readiness check failed")
	}
	writeProbe(w, r, code, resp)
}

func writeProbe(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "health")
		logger.Debug().
			Err(err).
			Str(log.FieldEvent, "health.encode_error").
			Msg("failed to write probe response")
	}
}

type funcChecker struct {
	name string
	fn   func(context.Context) CheckResult
}

func (c funcChecker) Name() string                          { return c.name }
func (c funcChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// NewPingChecker is unhealthy while ping fails (report store, redis).
func NewPingChecker(name string, ping func(context.Context) error) Checker {
	return funcChecker{name: name, fn: func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
		}
		return CheckResult{Status: StatusHealthy}
	}}
}

// NewBinaryChecker reports a missing helper binary (ffmpeg, ffprobe) as
// degraded: stored reports are still served without it.
func NewBinaryChecker(name, bin string) Checker {
	return binaryChecker(name, bin, exec.LookPath)
}

func binaryChecker(name, bin string, lookPath func(string) (string, error)) Checker {
	return funcChecker{name: name, fn: func(context.Context) CheckResult {
		path, err := lookPath(bin)
		if err != nil {
			return CheckResult{Status: StatusDegraded, Message: bin, Error: "binary not found"}
		}
		return CheckResult{Status: StatusHealthy, Message: path}
	}}
}
