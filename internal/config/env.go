// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

// lookup returns the variable when it is set and non-empty, logging the source.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return "", false
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	return v, true
}

// ParseString reads a string variable or returns def.
func ParseString(logger zerolog.Logger, key, def string) string {
	if v, ok := lookup(logger, key); ok {
		return v
	}
	return def
}

// ParseInt reads an integer variable; invalid values fall back to def.
func ParseInt(logger zerolog.Logger, key string, def int) int {
	v, ok := lookup(logger, key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Int("default", def).
			Msg("invalid integer in environment variable, using default")
		return def
	}
	return i
}

// ParseFloat reads a float variable; invalid values fall back to def.
func ParseFloat(logger zerolog.Logger, key string, def float64) float64 {
	v, ok := lookup(logger, key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Float64("default", def).
			Msg("invalid float in environment variable, using default")
		return def
	}
	return f
}

// ParseDuration reads a Go duration ("2s"); invalid values fall back to def.
func ParseDuration(logger zerolog.Logger, key string, def time.Duration) time.Duration {
	v, ok := lookup(logger, key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Dur("default", def).
			Msg("invalid duration in environment variable, using default")
		return def
	}
	return d
}

// ParseBool accepts true/false, 1/0 and yes/no.
func ParseBool(logger zerolog.Logger, key string, def bool) bool {
	v, ok := lookup(logger, key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		logger.Warn().Str("key", key).Str("value", v).Bool("default", def).
			Msg("invalid boolean in environment variable, using default")
		return def
	}
}

// ParseList reads a comma separated list, dropping empty items.
func ParseList(logger zerolog.Logger, key string, def []string) []string {
	v, ok := lookup(logger, key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
