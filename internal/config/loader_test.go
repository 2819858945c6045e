// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_DefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	l := NewLoader("", "1.2.3")
	assert.Empty(t, l.ConfigPath())

	cfg, err := l.Load()
	require.NoError(t, err)

	def := Defaults()
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, def.API, cfg.API)
	assert.Equal(t, def.Constraints, cfg.Constraints)
	assert.Equal(t, "ffprobe", cfg.Capture.FFprobeBin)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, filepath.Join(dir, "reports.db"), cfg.DBPath())
}

func TestLoad_FindsConfigInDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	writeFile(t, filepath.Join(dir, DefaultConfigName), "api:\n  maxPollAttempts: 3\n")

	l := NewLoader("", "test")
	assert.Equal(t, filepath.Join(dir, DefaultConfigName), l.ConfigPath())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.API.MaxPollAttempts)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vitalscan.yaml")
	writeFile(t, path, `
dataDir: `+dir+`
api:
  baseUrl: http://analysis.local:3000
  pollInterval: 3s
  maxPollAttempts: 4
constraints:
  acceptedTypes: [video/mp4]
  maxSizeMB: 20
log:
  level: debug
`)
	t.Setenv(EnvMaxPollAttempts, "7")
	t.Setenv(EnvAcceptedTypes, "video/mp4,video/webm")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://analysis.local:3000", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.PollInterval)
	assert.Equal(t, 7, cfg.API.MaxPollAttempts, "env wins over file")
	assert.Equal(t, []string{"video/mp4", "video/webm"}, cfg.Constraints.AcceptedTypes)
	assert.Equal(t, 20, cfg.Constraints.MaxSizeMB)
	assert.Equal(t, int64(20*1024*1024), cfg.Limits().MaxSizeBytes)
	assert.Equal(t, Defaults().Constraints.MaxDuration, cfg.Constraints.MaxDuration, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_StrictFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "unknown key", file: "a.yaml", content: "api:\n  baseURL: http://x\n", wantErr: "strict config parse error"},
		{name: "wrong type", file: "b.yaml", content: "api:\n  maxPollAttempts: many\n", wantErr: "strict config parse error"},
		{name: "multiple documents", file: "c.yaml", content: "log:\n  level: info\n---\nlog:\n  level: debug\n", wantErr: "multiple documents"},
		{name: "not yaml", file: "d.json", content: "{}", wantErr: "only YAML supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)
			_, err := NewLoader(path, "test").Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	path := filepath.Join(dir, "empty.yml")
	writeFile(t, path, "")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().API.BaseURL, cfg.API.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "test").Load()
	require.Error(t, err)
}

func TestLoad_InvalidResultRejected(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvAPIBaseURL, "ftp://analysis.local")

	_, err := NewLoader("", "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API.BaseURL")
}

func TestLoader_UnknownEnvKeys(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv("VITALSCAN_POLL_INTERVAL", "1s")

	l := NewLoader("", "test")
	_, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"VITALSCAN_POLL_INTERVAL"}, l.UnknownEnvKeys())
	assert.Contains(t, l.ConsumedEnvKeys, EnvPollInterval)
}
