// Package sysexec runs external commands and captures their outcome.
//
// The Runner interface is the seam between the recovery engine and the
// operating system: production code uses ExecRunner, tests substitute a mock.
// Execution is blocking with no internal timeout; package operations
// legitimately run for minutes, and cancellation belongs to the caller's
// context.
package sysexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Result holds the captured outcome of one command invocation.
type Result struct {
	Argv     []string      `json:"argv"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Success reports whether the command exited zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner abstracts command execution so callers can be tested without
// spawning processes. A non-nil error means the command could not be run at
// all; a command that ran and exited non-zero is a Result, not an error.
type Runner interface {
	Run(ctx context.Context, argv []string) (*Result, error)
}

// ExecRunner executes commands with os/exec.
type ExecRunner struct {
	log    *zap.Logger
	teeOut io.Writer
	teeErr io.Writer
}

// NewRunner returns an ExecRunner. A nil logger disables logging.
func NewRunner(log *zap.Logger) *ExecRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecRunner{log: log}
}

// Tee mirrors the child's streams to stdout and stderr as they arrive, in
// addition to capturing them. Either writer may be nil. Wrapped package
// commands run with the tee on so the user watches them live.
func (r *ExecRunner) Tee(stdout, stderr io.Writer) *ExecRunner {
	r.teeOut = stdout
	r.teeErr = stderr
	return r
}

// Run executes argv, blocking until the process exits, and captures both
// output streams in full.
func (r *ExecRunner) Run(ctx context.Context, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("sysexec: empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = io.Writer(&stdout)
	cmd.Stderr = io.Writer(&stderr)
	if r.teeOut != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.teeOut)
	}
	if r.teeErr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.teeErr)
	}

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Argv:     argv,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("sysexec: starting %s: %w", argv[0], err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	r.log.Debug("command finished",
		zap.String("command", strings.Join(argv, " ")),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// ShellArgv wraps a raw command line for execution through the system shell.
// Used when only the textual form of a command survived (replayed failures).
func ShellArgv(command string) []string {
	return []string{"sh", "-c", command}
}
