// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vitalscan/internal/admission"
	"github.com/ManuGH/vitalscan/internal/analysis"
	"github.com/ManuGH/vitalscan/internal/capture"
	"github.com/ManuGH/vitalscan/internal/config"
	"github.com/ManuGH/vitalscan/internal/media"
	"github.com/ManuGH/vitalscan/internal/report"
	"github.com/ManuGH/vitalscan/internal/session"
)

func TestMain(m *testing.M) {
	for _, e := range os.Environ() {
		if key, _, _ := strings.Cut(e, "="); strings.HasPrefix(key, config.EnvPrefix) {
			if err := os.Unsetenv(key); err != nil {
				panic("failed to unset env: " + err.Error())
			}
		}
	}
	os.Exit(m.Run())
}

type cliEnv struct {
	mock    *analysis.MockServer
	dataDir string
	opts    *rootOptions
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	mock := analysis.NewMockServer()
	t.Cleanup(mock.Close)

	dataDir := t.TempDir()
	t.Setenv(config.EnvDataDir, dataDir)
	t.Setenv(config.EnvAPIBaseURL, mock.URL)
	t.Setenv(config.EnvPollInterval, "10ms")
	t.Setenv(config.EnvCacheBackend, "memory")
	t.Setenv(config.EnvLogLevel, "error")

	return &cliEnv{
		mock:    mock,
		dataDir: dataDir,
		opts: &rootOptions{
			prober: media.ProberFunc(func(context.Context, media.Sample) (time.Duration, error) {
				return 12 * time.Second, nil
			}),
			openStream: func(capture.DeviceConfig) (capture.Stream, error) {
				return capture.NewMemoryStream("video/webm", []byte("frag-1"), []byte("frag-2")), nil
			},
		},
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmdWith(e.opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) writeVideo(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0o600))
	return path
}

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
	assert.Contains(t, out, "commit:")
}

func TestAnalyze_RendersAndStoresReport(t *testing.T) {
	env := newCLIEnv(t)
	video := env.writeVideo(t, "face.mp4", 4096)

	out, err := env.run(t, "analyze", video)
	require.NoError(t, err)
	assert.Contains(t, out, "Vitals Report "+env.mock.ReportID())
	assert.Contains(t, out, "72 bpm")

	uploads := env.mock.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "video", uploads[0].Field)
	assert.Equal(t, "video/mp4", uploads[0].ContentType)
	assert.Equal(t, 4096, uploads[0].Size)
	assert.Equal(t, "vitalscan/"+version, uploads[0].UserAgent)

	out, err = env.run(t, "report", "list")
	require.NoError(t, err)
	assert.Contains(t, out, env.mock.ReportID())
	assert.Contains(t, out, "1 of 1")

	exported := filepath.Join(t.TempDir(), "vis.json")
	out, err = env.run(t, "report", "export", env.mock.ReportID(), "--out", exported, "--view", "visualization")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported")
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	var vm report.VisualizationModel
	require.NoError(t, json.Unmarshal(data, &vm))
	assert.Equal(t, env.mock.ReportID(), vm.ReportID)
	assert.NotEmpty(t, vm.Cards)

	out, err = env.run(t, "report", "show", env.mock.ReportID(), "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, `"heartRate"`)
}

func TestAnalyze_JSONWithoutSaving(t *testing.T) {
	env := newCLIEnv(t)
	video := env.writeVideo(t, "face.webm", 1024)

	out, err := env.run(t, "analyze", video, "--json", "--no-save")
	require.NoError(t, err)
	var vm report.VisualizationModel
	require.NoError(t, json.Unmarshal([]byte(out), &vm))
	assert.Equal(t, "Normal", vm.OverallStatus)
	assert.Equal(t, "video/webm", env.mock.Uploads()[0].ContentType)

	out, err = env.run(t, "report", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No reports stored.")
}

func TestAnalyze_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		size    int
		message string
	}{
		{"unsupported type", "notes.txt", 10, "Please upload a valid video file (MP4, WebM, or QuickTime)"},
		{"too large", "huge.mp4", 50<<20 + 1, "Video must be smaller than 50MB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			_, err := env.run(t, "analyze", env.writeVideo(t, tt.file, tt.size))
			require.Error(t, err)
			assert.ErrorIs(t, err, admission.ErrValidation)
			assert.Equal(t, tt.message, err.Error())
			assert.Empty(t, env.mock.Uploads(), "rejected samples are never uploaded")
		})
	}
}

func TestAnalyze_MissingOrDirectoryInput(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "analyze", filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
	_, err = env.run(t, "analyze", t.TempDir())
	assert.Error(t, err)
}

func TestAnalyze_UploadFailureShowsUserMessage(t *testing.T) {
	env := newCLIEnv(t)
	env.mock.SetUploadResponse(http.StatusInternalServerError, `{"error":"boom"}`)

	_, err := env.run(t, "analyze", env.writeVideo(t, "face.mp4", 512))
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrServer)
	assert.Equal(t, analysis.MsgUploadFailed, err.Error())
}

func TestRecord_SubmitAndSave(t *testing.T) {
	env := newCLIEnv(t)
	saved := filepath.Join(t.TempDir(), "capture.webm")

	out, err := env.run(t, "record", "--duration", "50ms", "--submit", "--save-to", saved)
	require.NoError(t, err)
	assert.Contains(t, out, "[1/6] Position Yourself")
	assert.Contains(t, out, "Captured 12 B of video/webm")
	assert.Contains(t, out, "Vitals Report "+env.mock.ReportID())

	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "frag-1frag-2", string(data))

	uploads := env.mock.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, 12, uploads[0].Size)
}

func TestRecord_WithoutSubmit(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "record", "--duration", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Not submitted")
	assert.Empty(t, env.mock.Uploads())
}

func TestRecord_FileInputStandsInForCamera(t *testing.T) {
	env := newCLIEnv(t)
	env.opts.openStream = openDevice
	t.Setenv(config.EnvCaptureFormat, capture.InputFormatFile)
	t.Setenv(config.EnvCaptureDevice, env.writeVideo(t, "face.webm", 300))

	out, err := env.run(t, "record", "--duration", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Captured 300 B of video/webm")
}

func TestRecord_CameraUnavailable(t *testing.T) {
	env := newCLIEnv(t)
	env.opts.openStream = func(capture.DeviceConfig) (capture.Stream, error) {
		return nil, fmt.Errorf("%w: /dev/video0 missing", capture.ErrUnavailable)
	}

	_, err := env.run(t, "record", "--duration", "20ms")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrPermission)
	assert.Equal(t, "No video stream available. Check camera permissions.", err.Error())
}

func TestReportCommands_FlagValidation(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "report", "export", "rpt-1", "--view", "pdf")
	assert.ErrorContains(t, err, "--view")

	_, err = env.run(t, "report", "list", "--limit", "0")
	assert.ErrorContains(t, err, "--limit")

	_, err = env.run(t, "report", "list", "--offset", "-1")
	assert.ErrorContains(t, err, "--offset")

	_, err = env.run(t, "report", "show", "rpt-1", "--json", "--raw")
	assert.Error(t, err)
}

func TestConfigErrorsAreReported(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv(config.EnvAPIBaseURL, "ftp://example.com")

	_, err := env.run(t, "analyze", env.writeVideo(t, "face.mp4", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestServe_ServesUntilCancelled(t *testing.T) {
	env := newCLIEnv(t)
	cfg, loader, err := env.opts.load()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, loader, env.opts, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/api/v1/session")
	require.NoError(t, err)
	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	_ = resp.Body.Close()
	assert.Equal(t, session.StateIdle, snap.State)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
