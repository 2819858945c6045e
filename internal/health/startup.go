// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ManuGH/vitalscan/internal/config"
	"github.com/ManuGH/vitalscan/internal/log"
)

// errNonFatal marks a startup problem that is logged but does not stop the
// server.
var errNonFatal = errors.New("non-fatal")

type startupCheck struct {
	name string
	run  func() error
}

// PerformStartupChecks runs the pre-serve checks in order. The first fatal
// failure is returned; warnings are logged and skipped.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	return runStartupChecks(ctx, startupChecks(cfg, exec.LookPath))
}

func startupChecks(cfg config.AppConfig, lookPath func(string) (string, error)) []startupCheck {
	checks := []startupCheck{
		{name: "data_dir", run: func() error { return probeWritable(cfg.DataDir) }},
		{name: "spool_dir", run: func() error { return os.MkdirAll(cfg.SpoolDir(), 0o750) }},
		{name: "data_dir_volatile", run: func() error {
			if underDir(cfg.DataDir, os.TempDir()) {
				return fmt.Errorf("%w: %s is under the temp directory; history may not survive a reboot", errNonFatal, cfg.DataDir)
			}
			return nil
		}},
	}
	for _, bin := range []string{cfg.Capture.FFmpegBin, cfg.Capture.FFprobeBin} {
		checks = append(checks, startupCheck{name: "binary:" + filepath.Base(bin), run: func() error {
			if _, err := lookPath(bin); err != nil {
				return fmt.Errorf("%w: %v", errNonFatal, err)
			}
			return nil
		}})
	}
	return checks
}

func runStartupChecks(ctx context.Context, checks []startupCheck) error {
	logger := log.WithComponent("startup")
	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.run()
		switch {
		case err == nil:
			logger.Debug().Str(log.FieldEvent, "startup.check_ok").Str("check", c.name).Msg("startup check passed")
		case errors.Is(err, errNonFatal):
			logger.Warn().Err(err).Str(log.FieldEvent, "startup.check_warn").Str("check", c.name).Msg("startup check degraded")
		default:
			return fmt.Errorf("startup check %s: %w", c.name, err)
		}
	}
	logger.Info().Str(log.FieldEvent, "startup.checks_passed").Int("checks", len(checks)).Msg("startup checks passed")
	return nil
}

// probeWritable requires path to be an existing directory that accepts a
// new file.
func probeWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	f, err := os.CreateTemp(path, ".probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func underDir(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
