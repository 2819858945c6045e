// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"

	"github.com/ManuGH/vitalscan/internal/cache"
	"github.com/ManuGH/vitalscan/internal/validate"
)

// Validate checks a fully merged configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("DataDir", cfg.DataDir, false)

	v.URL("API.BaseURL", cfg.API.BaseURL, "http", "https")
	validate.Between(v, "API.UploadTimeout", cfg.API.UploadTimeout, time.Second, 30*time.Minute)
	validate.Between(v, "API.PollInterval", cfg.API.PollInterval, 10*time.Millisecond, 5*time.Minute)
	validate.Between(v, "API.MaxPollAttempts", cfg.API.MaxPollAttempts, 1, 1000)
	validate.Between(v, "API.BreakerThreshold", cfg.API.BreakerThreshold, 1, 1000)
	validate.Between(v, "API.BreakerReset", cfg.API.BreakerReset, time.Second, time.Hour)
	validate.Between(v, "API.RequestsPerSecond", cfg.API.RequestsPerSecond, 0, 10000)

	v.MediaTypes("Constraints.AcceptedTypes", cfg.Constraints.AcceptedTypes)
	validate.Above(v, "Constraints.MaxSizeMB", cfg.Constraints.MaxSizeMB, 0)
	validate.Between(v, "Constraints.MaxDuration", cfg.Constraints.MaxDuration, time.Second, 10*time.Minute)

	v.NotEmpty("Capture.FFmpegBin", cfg.Capture.FFmpegBin)
	validate.Between(v, "Capture.Width", cfg.Capture.Width, 16, 7680)
	validate.Between(v, "Capture.Height", cfg.Capture.Height, 16, 4320)
	validate.Between(v, "Capture.FrameRate", cfg.Capture.FrameRate, 1, 240)

	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{cache.BackendMemory, cache.BackendRedis, cache.BackendNone})
	if cfg.Cache.Backend == cache.BackendRedis {
		v.NotEmpty("Cache.RedisAddr", cfg.Cache.RedisAddr)
	}
	if cfg.Cache.Backend != cache.BackendNone {
		validate.Between(v, "Cache.TTL", cfg.Cache.TTL, time.Second, 7*24*time.Hour)
	}
	validate.Between(v, "Cache.RedisDB", cfg.Cache.RedisDB, 0, 15)

	v.ListenAddr("Server.Listen", cfg.Server.Listen)
	validate.Between(v, "Server.ReadTimeout", cfg.Server.ReadTimeout, time.Second, time.Hour)
	validate.Between(v, "Server.WriteTimeout", cfg.Server.WriteTimeout, time.Second, time.Hour)
	validate.Between(v, "Server.ShutdownTimeout", cfg.Server.ShutdownTimeout, time.Second, 5*time.Minute)
	validate.Between(v, "Server.RateLimit", cfg.Server.RateLimit, 0, 100000)

	v.OneOf("Log.Level", cfg.Log.Level, validate.LogLevels)
	v.OneOf("Log.Format", cfg.Log.Format, validate.LogFormats)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, validate.OTLPExporters)
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		validate.Between(v, "Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
