// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads vitalscan configuration.
//
// Precedence is ENV (VITALSCAN_*) > YAML file > defaults. The file is parsed
// strictly: unknown keys are errors.
package config

import (
	"path/filepath"
	"time"

	"github.com/ManuGH/vitalscan/internal/admission"
	"github.com/ManuGH/vitalscan/internal/analysis"
	"github.com/ManuGH/vitalscan/internal/cache"
	"github.com/ManuGH/vitalscan/internal/capture"
	"github.com/ManuGH/vitalscan/internal/telemetry"
)

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	DataDir     string            `yaml:"dataDir"`
	API         APIConfig         `yaml:"api"`
	Constraints ConstraintsConfig `yaml:"constraints"`
	Capture     CaptureConfig     `yaml:"capture"`
	Cache       CacheConfig       `yaml:"cache"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	Version string `yaml:"-"`
}

// APIConfig points at the analysis service.
type APIConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	UploadTimeout     time.Duration `yaml:"uploadTimeout"`
	PollInterval      time.Duration `yaml:"pollInterval"`
	MaxPollAttempts   int           `yaml:"maxPollAttempts"`
	BreakerThreshold  int           `yaml:"breakerThreshold"`
	BreakerReset      time.Duration `yaml:"breakerReset"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
}

// ConstraintsConfig are the admission limits.
type ConstraintsConfig struct {
	AcceptedTypes []string      `yaml:"acceptedTypes"`
	MaxSizeMB     int           `yaml:"maxSizeMB"`
	MaxDuration   time.Duration `yaml:"maxDuration"`
}

// CaptureConfig drives the ffmpeg recorder and ffprobe.
type CaptureConfig struct {
	FFmpegBin   string `yaml:"ffmpegBin"`
	FFprobeBin  string `yaml:"ffprobeBin"`
	Device      string `yaml:"device"`
	InputFormat string `yaml:"inputFormat"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FrameRate   int    `yaml:"frameRate"`
}

// CacheConfig selects the report cache.
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	RedisAddr       string        `yaml:"redisAddr"`
	RedisPassword   string        `yaml:"redisPassword"`
	RedisDB         int           `yaml:"redisDB"`
	KeyPrefix       string        `yaml:"keyPrefix"`
}

// ServerConfig is the local control API.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"` // requests per minute per client; 0 disables
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	limits := admission.DefaultLimits()
	return AppConfig{
		DataDir: "data",
		API: APIConfig{
			BaseURL:          "https://srt.actofit.com:3000",
			UploadTimeout:    analysis.DefaultUploadTimeout,
			PollInterval:     analysis.DefaultPollInterval,
			MaxPollAttempts:  analysis.DefaultMaxPollAttempts,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Constraints: ConstraintsConfig{
			AcceptedTypes: limits.AcceptedTypes,
			MaxSizeMB:     int(limits.MaxSizeBytes / (1024 * 1024)),
			MaxDuration:   limits.MaxDuration,
		},
		Capture: CaptureConfig{
			FFmpegBin:   "ffmpeg",
			Device:      "/dev/video0",
			InputFormat: "v4l2",
			Width:       640,
			Height:      640,
			FrameRate:   30,
		},
		Cache: CacheConfig{
			Backend:         cache.BackendMemory,
			TTL:             10 * time.Minute,
			CleanupInterval: time.Minute,
			KeyPrefix:       "vitalscan:",
		},
		Server: ServerConfig{
			Listen:          "127.0.0.1:8088",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       120,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}

// Limits converts the constraints for the admission validator.
func (c AppConfig) Limits() admission.Limits {
	return admission.Limits{
		AcceptedTypes: append([]string(nil), c.Constraints.AcceptedTypes...),
		MaxSizeBytes:  int64(c.Constraints.MaxSizeMB) * 1024 * 1024,
		MaxDuration:   c.Constraints.MaxDuration,
	}
}

// AnalysisConfig converts the API section for the analysis client.
func (c AppConfig) AnalysisConfig() analysis.Config {
	return analysis.Config{
		BaseURL:           c.API.BaseURL,
		UploadTimeout:     c.API.UploadTimeout,
		PollInterval:      c.API.PollInterval,
		MaxPollAttempts:   c.API.MaxPollAttempts,
		BreakerThreshold:  c.API.BreakerThreshold,
		BreakerReset:      c.API.BreakerReset,
		RequestsPerSecond: c.API.RequestsPerSecond,
		UserAgent:         "vitalscan/" + c.Version,
	}
}

// DeviceConfig converts the capture section for the ffmpeg recorder.
func (c AppConfig) DeviceConfig() capture.DeviceConfig {
	return capture.DeviceConfig{
		FFmpegBin:   c.Capture.FFmpegBin,
		Device:      c.Capture.Device,
		InputFormat: c.Capture.InputFormat,
		Width:       c.Capture.Width,
		Height:      c.Capture.Height,
		FrameRate:   c.Capture.FrameRate,
		MaxDuration: c.Constraints.MaxDuration,
	}
}

// CacheBackendConfig converts the cache section.
func (c AppConfig) CacheBackendConfig() cache.Config {
	return cache.Config{
		Backend:         c.Cache.Backend,
		CleanupInterval: c.Cache.CleanupInterval,
		Redis: cache.RedisConfig{
			Addr:      c.Cache.RedisAddr,
			Password:  c.Cache.RedisPassword,
			DB:        c.Cache.RedisDB,
			KeyPrefix: c.Cache.KeyPrefix,
		},
	}
}

// TelemetryProviderConfig converts the telemetry section.
func (c AppConfig) TelemetryProviderConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    "vitalscan",
		ServiceVersion: c.Version,
		Environment:    c.Telemetry.Environment,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}

// DBPath is the report history database.
func (c AppConfig) DBPath() string { return filepath.Join(c.DataDir, "reports.db") }

// SpoolDir holds preview and probe files.
func (c AppConfig) SpoolDir() string { return filepath.Join(c.DataDir, "spool") }
