// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vitalscan/internal/cache"
	"github.com/ManuGH/vitalscan/internal/validate"
)

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	valid := func() AppConfig {
		cfg := Defaults()
		cfg.DataDir = dir
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{name: "defaults are valid"},
		{name: "scheme", mutate: func(c *AppConfig) { c.API.BaseURL = "file:///tmp" }, field: "API.BaseURL"},
		{name: "zero attempts", mutate: func(c *AppConfig) { c.API.MaxPollAttempts = 0 }, field: "API.MaxPollAttempts"},
		{name: "tiny poll interval", mutate: func(c *AppConfig) { c.API.PollInterval = time.Millisecond }, field: "API.PollInterval"},
		{name: "bad media type", mutate: func(c *AppConfig) { c.Constraints.AcceptedTypes = []string{"mp4"} }, field: "Constraints.AcceptedTypes"},
		{name: "no size limit", mutate: func(c *AppConfig) { c.Constraints.MaxSizeMB = 0 }, field: "Constraints.MaxSizeMB"},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.Cache.Backend = "memcached" }, field: "Cache.Backend"},
		{name: "redis without addr", mutate: func(c *AppConfig) { c.Cache.Backend = cache.BackendRedis }, field: "Cache.RedisAddr"},
		{name: "listen", mutate: func(c *AppConfig) { c.Server.Listen = "localhost" }, field: "Server.Listen"},
		{name: "log level", mutate: func(c *AppConfig) { c.Log.Level = "trace" }, field: "Log.Level"},
		{name: "log format", mutate: func(c *AppConfig) { c.Log.Format = "logfmt" }, field: "Log.Format"},
		{
			name: "sampling rate",
			mutate: func(c *AppConfig) {
				c.Telemetry.Enabled = true
				c.Telemetry.SamplingRate = 1.5
			},
			field: "Telemetry.SamplingRate",
		},
		{
			name: "telemetry off skips exporter",
			mutate: func(c *AppConfig) {
				c.Telemetry.Exporter = "zipkin"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := Validate(cfg)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var report *validate.Report
			require.ErrorAs(t, err, &report)
			assert.Contains(t, report.Fields(), tt.field)
		})
	}
}
