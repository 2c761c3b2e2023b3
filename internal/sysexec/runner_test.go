package sysexec

import (
	"bytes"
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunCapturesOutput(t *testing.T) {
	skipWithoutShell(t)

	r := NewRunner(nil)
	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Success())
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	skipWithoutShell(t)

	r := NewRunner(nil)
	res, err := r.Run(context.Background(), []string{"sh", "-c", "exit 42"})
	require.NoError(t, err, "a command that ran and failed is a Result, not an error")
	assert.Equal(t, 42, res.ExitCode)
	assert.False(t, res.Success())
}

func TestRunTeeMirrorsStreams(t *testing.T) {
	skipWithoutShell(t)

	var liveOut, liveErr bytes.Buffer
	r := NewRunner(nil).Tee(&liveOut, &liveErr)
	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"})
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout, "capture still works with the tee on")
	assert.Equal(t, "out\n", liveOut.String())
	assert.Equal(t, "err\n", liveErr.String())
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner(nil)
	_, err := r.Run(context.Background(), []string{"pkgmedic-no-such-binary-zz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting")
}

func TestRunEmptyArgv(t *testing.T) {
	r := NewRunner(nil)
	_, err := r.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestShellArgv(t *testing.T) {
	assert.Equal(t, []string{"sh", "-c", "apt-get update && apt-get install -y jq"},
		ShellArgv("apt-get update && apt-get install -y jq"))
}
