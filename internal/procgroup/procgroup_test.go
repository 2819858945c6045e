// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package procgroup

import (
	"errors"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, cmd *exec.Cmd) <-chan error {
	t.Helper()
	Set(cmd)
	require.NoError(t, cmd.Start())
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	return waitCh
}

func TestTerminate_GracefulStdinStop(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cmd := exec.Command("sh", "-c", "read line; exit 0")
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	waitCh := start(t, cmd)

	err = Terminate(cmd, waitCh, func() error {
		_, werr := io.WriteString(stdin, "q\n")
		return werr
	}, 2*time.Second)
	assert.NoError(t, err)
}

func TestTerminate_EscalatesToSignal(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command("sleep", "30")
	waitCh := start(t, cmd)

	started := time.Now()
	err := Terminate(cmd, waitCh, nil, 2*time.Second)
	require.Error(t, err)
	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestTerminate_NilCommand(t *testing.T) {
	assert.NoError(t, Terminate(nil, nil, nil, time.Second))
}
