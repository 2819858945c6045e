// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the level, encoding and destination of the process logger.
type Config struct {
	Level   string    // debug, info, warn or error; empty means info
	Format  string    // json (default) or console
	Output  io.Writer // defaults to os.Stderr
	Service string
	Version string
}

var (
	mu         sync.RWMutex
	configured bool
	root       zerolog.Logger
)

// Configure installs the process logger unless one is already installed.
// Commands call it before their configuration is known.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if !configured {
		install(cfg)
	}
}

// Reconfigure replaces the process logger.
func Reconfigure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	install(cfg)
}

func install(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: !isTerminal(out)}
	}
	if cfg.Service == "" {
		cfg.Service = "vitalscan"
	}

	ctx := zerolog.New(out).With().Timestamp().Str("service", cfg.Service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}
	root = ctx.Logger()
	configured = true
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func current() zerolog.Logger {
	mu.RLock()
	if configured {
		defer mu.RUnlock()
		return root
	}
	mu.RUnlock()
	Configure(Config{})
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// WithComponent returns a child of the process logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return current().With().Str(FieldComponent, component).Logger()
}

// SetLevel changes the global level in place; used on config reload.
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}
