// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup starts child processes in their own process group and tears them down.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	xglog "github.com/ManuGH/vitalscan/internal/log"
	"github.com/ManuGH/vitalscan/internal/metrics"
)

// Set configures the command to start in a new process group.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate stops a process started with Set and returns its Wait error.
//
// graceful (optional) asks the process to finish on its own, e.g. by writing to
// its stdin. After grace without exit the group gets SIGTERM, after a second
// grace SIGKILL. waitCh must deliver the result of cmd.Wait exactly once.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, graceful func() error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	logger := xglog.WithComponent("procgroup").With().Int("pid", cmd.Process.Pid).Logger()

	if graceful != nil {
		if err := graceful(); err != nil {
			logger.Debug().Err(err).Msg("graceful stop request failed")
		} else {
			select {
			case err := <-waitCh:
				metrics.RecordProcessStop("graceful")
				return err
			case <-time.After(grace):
			}
		}
	}

	if err := kill(cmd, syscall.SIGTERM); err != nil {
		logger.Debug().Err(err).Msg("SIGTERM failed")
	}
	select {
	case err := <-waitCh:
		metrics.RecordProcessStop("sigterm")
		return err
	case <-time.After(grace):
	}

	logger.Warn().Msg("grace period exceeded, sending SIGKILL to process group")
	if err := kill(cmd, syscall.SIGKILL); err != nil {
		logger.Debug().Err(err).Msg("SIGKILL failed")
	}
	metrics.RecordProcessStop("sigkill")
	return <-waitCh
}

func ignoreGone(err error) error {
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
