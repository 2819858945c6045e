// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	xglog "github.com/ManuGH/vitalscan/internal/log"
)

// EnvPrefix namespaces every environment key.
const EnvPrefix = "VITALSCAN_"

// Environment keys.
const (
	EnvDataDir          = "VITALSCAN_DATA"
	EnvAPIBaseURL       = "VITALSCAN_API_BASE_URL"
	EnvUploadTimeout    = "VITALSCAN_API_UPLOAD_TIMEOUT"
	EnvPollInterval     = "VITALSCAN_API_POLL_INTERVAL"
	EnvMaxPollAttempts  = "VITALSCAN_API_MAX_POLL_ATTEMPTS"
	EnvBreakerThreshold = "VITALSCAN_API_BREAKER_THRESHOLD"
	EnvBreakerReset     = "VITALSCAN_API_BREAKER_RESET"
	EnvRequestsPerSec   = "VITALSCAN_API_RPS"
	EnvAcceptedTypes    = "VITALSCAN_ACCEPTED_TYPES"
	EnvMaxSizeMB        = "VITALSCAN_MAX_SIZE_MB"
	EnvMaxDuration      = "VITALSCAN_MAX_DURATION"
	EnvFFmpegBin        = "VITALSCAN_FFMPEG_BIN"
	EnvFFprobeBin       = "VITALSCAN_FFPROBE_BIN"
	EnvCaptureDevice    = "VITALSCAN_CAPTURE_DEVICE"
	EnvCaptureFormat    = "VITALSCAN_CAPTURE_FORMAT"
	EnvCacheBackend     = "VITALSCAN_CACHE_BACKEND"
	EnvCacheTTL         = "VITALSCAN_CACHE_TTL"
	EnvRedisAddr        = "VITALSCAN_REDIS_ADDR"
	EnvRedisPassword    = "VITALSCAN_REDIS_PASSWORD"
	EnvRedisDB          = "VITALSCAN_REDIS_DB"
	EnvListen           = "VITALSCAN_LISTEN"
	EnvRateLimit        = "VITALSCAN_RATE_LIMIT"
	EnvLogLevel         = "VITALSCAN_LOG_LEVEL"
	EnvLogFormat        = "VITALSCAN_LOG_FORMAT"
	EnvTracingEnabled   = "VITALSCAN_TRACING_ENABLED"
	EnvOTLPExporter     = "VITALSCAN_OTLP_EXPORTER"
	EnvOTLPEndpoint     = "VITALSCAN_OTLP_ENDPOINT"
	EnvTraceSampling    = "VITALSCAN_TRACE_SAMPLING"
)

// DefaultConfigName is looked up in the data directory when no path is given.
const DefaultConfigName = "config.yaml"

// Loader applies defaults, the YAML file and the environment, then validates.
type Loader struct {
	configPath string
	version    string
	logger     zerolog.Logger

	// ConsumedEnvKeys records every key the loader read.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader returns a loader. An empty configPath means
// ${VITALSCAN_DATA:-data}/config.yaml if that file exists, else env only.
func NewLoader(configPath, version string) *Loader {
	l := &Loader{
		version:         version,
		logger:          xglog.WithComponent("config"),
		ConsumedEnvKeys: make(map[string]struct{}),
	}
	if configPath == "" {
		dataDir := l.envString(EnvDataDir, Defaults().DataDir)
		candidate := filepath.Join(dataDir, DefaultConfigName)
		if _, err := os.Stat(candidate); err == nil {
			configPath = candidate
		}
	}
	l.configPath = configPath
	return l
}

// ConfigPath is the file in use, or "" for env-only configuration.
func (l *Loader) ConfigPath() string { return l.configPath }

func (l *Loader) consume(key string) { l.ConsumedEnvKeys[key] = struct{}{} }

func (l *Loader) envString(key, def string) string {
	l.consume(key)
	return ParseString(l.logger, key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.consume(key)
	return ParseInt(l.logger, key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.consume(key)
	return ParseFloat(l.logger, key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.consume(key)
	return ParseBool(l.logger, key, def)
}

func (l *Loader) envList(key string, def []string) []string {
	l.consume(key)
	return ParseList(l.logger, key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.consume(key)
	return ParseDuration(l.logger, key, def)
}

// Load builds and validates the configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	l.mergeEnv(&cfg)

	cfg.Capture.FFprobeBin = ResolveFFprobeBin(cfg.Capture.FFprobeBin, cfg.Capture.FFmpegBin)
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if unknown := l.UnknownEnvKeys(); len(unknown) > 0 {
		l.logger.Warn().
			Str(xglog.FieldEvent, "config.unknown_env").
			Strs("keys", unknown).
			Msg("ignoring unknown environment variables")
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg. Unknown fields are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}
	// #nosec G304 -- the operator chooses the config path
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)

	cfg.API.BaseURL = l.envString(EnvAPIBaseURL, cfg.API.BaseURL)
	cfg.API.UploadTimeout = l.envDuration(EnvUploadTimeout, cfg.API.UploadTimeout)
	cfg.API.PollInterval = l.envDuration(EnvPollInterval, cfg.API.PollInterval)
	cfg.API.MaxPollAttempts = l.envInt(EnvMaxPollAttempts, cfg.API.MaxPollAttempts)
	cfg.API.BreakerThreshold = l.envInt(EnvBreakerThreshold, cfg.API.BreakerThreshold)
	cfg.API.BreakerReset = l.envDuration(EnvBreakerReset, cfg.API.BreakerReset)
	cfg.API.RequestsPerSecond = l.envFloat(EnvRequestsPerSec, cfg.API.RequestsPerSecond)

	cfg.Constraints.AcceptedTypes = l.envList(EnvAcceptedTypes, cfg.Constraints.AcceptedTypes)
	cfg.Constraints.MaxSizeMB = l.envInt(EnvMaxSizeMB, cfg.Constraints.MaxSizeMB)
	cfg.Constraints.MaxDuration = l.envDuration(EnvMaxDuration, cfg.Constraints.MaxDuration)

	cfg.Capture.FFmpegBin = l.envString(EnvFFmpegBin, cfg.Capture.FFmpegBin)
	cfg.Capture.FFprobeBin = l.envString(EnvFFprobeBin, cfg.Capture.FFprobeBin)
	cfg.Capture.Device = l.envString(EnvCaptureDevice, cfg.Capture.Device)
	cfg.Capture.InputFormat = l.envString(EnvCaptureFormat, cfg.Capture.InputFormat)

	cfg.Cache.Backend = l.envString(EnvCacheBackend, cfg.Cache.Backend)
	cfg.Cache.TTL = l.envDuration(EnvCacheTTL, cfg.Cache.TTL)
	cfg.Cache.RedisAddr = l.envString(EnvRedisAddr, cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString(EnvRedisPassword, cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt(EnvRedisDB, cfg.Cache.RedisDB)

	cfg.Server.Listen = l.envString(EnvListen, cfg.Server.Listen)
	cfg.Server.RateLimit = l.envInt(EnvRateLimit, cfg.Server.RateLimit)

	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = l.envString(EnvLogFormat, cfg.Log.Format)

	cfg.Telemetry.Enabled = l.envBool(EnvTracingEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvOTLPExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTLPEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTraceSampling, cfg.Telemetry.SamplingRate)
}

// UnknownEnvKeys lists set VITALSCAN_* variables the loader never read.
func (l *Loader) UnknownEnvKeys() []string {
	var out []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
