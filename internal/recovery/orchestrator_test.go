package recovery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pkgmedic/internal/pkgmgr"
	"pkgmedic/internal/sysexec"
)

type scriptPrompter struct {
	answers []bool
	prompts []string
	tokens  []string
	err     error
}

func (p *scriptPrompter) Confirm(prompt string) (bool, error) {
	p.prompts = append(p.prompts, prompt)
	return p.pop()
}

func (p *scriptPrompter) ConfirmStrong(prompt, token string) (bool, error) {
	p.prompts = append(p.prompts, prompt)
	p.tokens = append(p.tokens, token)
	return p.pop()
}

func (p *scriptPrompter) pop() (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if len(p.answers) == 0 {
		return false, nil
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

type orchFixture struct {
	runner  *mockRunner
	store   *RecordStore
	notify  *recordingNotifier
	metrics *Metrics
	orch    *Orchestrator
}

type orchOptions struct {
	hint    Hint
	autoFix bool
	prompt  *scriptPrompter
	manager *pkgmgr.Manager
	policy  *AutoPolicy
}

func newOrchFixture(t *testing.T, opts orchOptions) *orchFixture {
	t.Helper()
	f := &orchFixture{
		runner:  &mockRunner{},
		store:   NewRecordStore(t.TempDir()),
		notify:  &recordingNotifier{},
		metrics: &Metrics{},
	}
	interp := NewInterpreter(&InterpreterConfig{
		Runner:  f.runner,
		Manager: opts.manager,
		Notify:  f.notify,
	})
	cfg := &OrchestratorConfig{
		Analyzer: NewAnalyzer(mustRepo(t), nil),
		Interp:   interp,
		Store:    f.store,
		Runner:   f.runner,
		Notify:   f.notify,
		Metrics:  f.metrics,
		Hint:     opts.hint,
		AutoFix:  opts.autoFix,
		Auto:     opts.policy,
	}
	if opts.prompt != nil {
		cfg.Prompt = opts.prompt
	}
	f.orch = NewOrchestrator(cfg)
	return f
}

func (f *orchFixture) saveRecord(t *testing.T, command, stderr string, exitCode int) {
	t.Helper()
	require.NoError(t, f.store.Save(&Record{
		Command:   command,
		ExitCode:  exitCode,
		Stderr:    stderr,
		Timestamp: time.Now(),
	}))
}

func (f *orchFixture) recordExists() bool {
	_, err := f.store.Load()
	return err == nil
}

func rpmdbEvent() FailureEvent {
	return NewFailureEvent(
		"dnf install kernel-headers",
		[]string{"dnf", "install", "kernel-headers"},
		&sysexec.Result{ExitCode: 1, Stderr: "error: rpmdb open failed\n"},
	)
}

func TestHandleFailureAutoFix(t *testing.T) {
	f := newOrchFixture(t, orchOptions{hint: Hint{Platform: "fedora", Manager: "dnf"}, autoFix: true})
	f.runner.On("Run", mock.Anything, []string{"rpm", "--rebuilddb"}).Return(okResult(), nil)

	out := f.orch.HandleFailure(context.Background(), rpmdbEvent())

	require.NotEmpty(t, out.Analyses)
	assert.Equal(t, "fedora/rpmdb-corrupt", out.Analyses[0].Pattern.ID)
	assert.True(t, out.Recovered)
	require.NotNil(t, out.Applied)
	assert.Equal(t, StrategyCommand, out.Applied.Strategy.Kind)
	assert.False(t, f.recordExists(), "recovery clears the persisted record")

	snap := f.metrics.Snapshot()
	assert.Equal(t, 1, snap.FailuresSeen)
	assert.Equal(t, 1, snap.FixesAttempted)
	assert.Equal(t, 1, snap.FixesSucceeded)
	f.runner.AssertExpectations(t)
}

func TestHandleFailurePersistsRecord(t *testing.T) {
	f := newOrchFixture(t, orchOptions{autoFix: true})

	ev := NewFailureEvent("pip install left-pad", nil,
		&sysexec.Result{ExitCode: 3, Stdout: "collecting...", Stderr: "utterly unknown breakage"})
	out := f.orch.HandleFailure(context.Background(), ev)

	assert.Empty(t, out.Analyses)
	assert.False(t, out.Recovered)
	assert.Contains(t, f.notify.joined(), "no known failure pattern")

	rec, err := f.store.Load()
	require.NoError(t, err, "unmatched failures still persist for later diagnosis")
	assert.Equal(t, ev.Command, rec.Command)
	assert.Equal(t, ev.ExitCode, rec.ExitCode)
	assert.Equal(t, ev.Stdout, rec.Stdout)
	assert.Equal(t, ev.Stderr, rec.Stderr)
}

func TestHandleFailureSkipsBelowConfidence(t *testing.T) {
	f := newOrchFixture(t, orchOptions{hint: Hint{Platform: "arch"}, autoFix: true})

	ev := NewFailureEvent("pacman -Syu", []string{"pacman", "-Syu"},
		&sysexec.Result{ExitCode: 1, Stderr: "error: could not lock database: File exists"})
	out := f.orch.HandleFailure(context.Background(), ev)

	assert.False(t, out.Recovered)
	require.NotEmpty(t, out.SkipReasons)
	assert.Contains(t, out.SkipReasons[0], "confidence")
	assert.True(t, f.recordExists(), "a skipped fix keeps the record")
	assert.Equal(t, 1, f.metrics.Snapshot().AutoSkipped)
	f.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestHandleFailureAutoDisabled(t *testing.T) {
	f := newOrchFixture(t, orchOptions{hint: Hint{Platform: "fedora"}, autoFix: false})

	out := f.orch.HandleFailure(context.Background(), rpmdbEvent())

	assert.False(t, out.Recovered)
	assert.Equal(t, []string{"automatic remediation is disabled"}, out.SkipReasons)
	f.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestHandleFailureBudgetExhausts(t *testing.T) {
	f := newOrchFixture(t, orchOptions{hint: Hint{Platform: "fedora"}, autoFix: true})
	f.runner.On("Run", mock.Anything, []string{"rpm", "--rebuilddb"}).Return(okResult(), nil)

	first := f.orch.HandleFailure(context.Background(), rpmdbEvent())
	require.True(t, first.Recovered)

	second := f.orch.HandleFailure(context.Background(), rpmdbEvent())
	assert.False(t, second.Recovered)
	require.NotEmpty(t, second.SkipReasons)
	assert.Contains(t, second.SkipReasons[0], "budget exhausted")
	assert.Equal(t, 1, f.metrics.Snapshot().BudgetExhausted)
	f.runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestHandleFailureFixFailureKeepsRecord(t *testing.T) {
	f := newOrchFixture(t, orchOptions{hint: Hint{Platform: "fedora"}, autoFix: true})
	f.runner.On("Run", mock.Anything, []string{"rpm", "--rebuilddb"}).
		Return(failedResult(1, "cannot open Packages database"), nil)

	out := f.orch.HandleFailure(context.Background(), rpmdbEvent())

	assert.False(t, out.Recovered)
	assert.True(t, f.recordExists())
	assert.Contains(t, f.notify.joined(), "automatic fix did not recover")
	snap := f.metrics.Snapshot()
	assert.Equal(t, 1, snap.FixesAttempted)
	assert.Equal(t, 1, snap.FixesFailed)
}

func TestReplayMissingRecord(t *testing.T) {
	f := newOrchFixture(t, orchOptions{})

	_, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRecord))
}

func TestReplayDryRunExecutesNothing(t *testing.T) {
	f := newOrchFixture(t, orchOptions{hint: Hint{Platform: "arch"}})
	f.saveRecord(t, "pacman -S vim", "error: could not lock database: File exists", 1)

	out, err := f.orch.Replay(context.Background(), ModeDryRun)
	require.NoError(t, err)

	assert.False(t, out.Recovered)
	assert.NotEmpty(t, out.Analyses)
	assert.True(t, f.recordExists())
	assert.Contains(t, f.notify.joined(), "would offer:")
	f.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestReplaySafeFixRunsWithoutPrompt(t *testing.T) {
	prompt := &scriptPrompter{}
	f := newOrchFixture(t, orchOptions{hint: Hint{Platform: "arch"}, prompt: prompt})
	f.saveRecord(t, "pacman -S vim", "error: could not lock database: File exists", 1)
	f.runner.On("Run", mock.Anything, []string{"rm", "-f", "/var/lib/pacman/db.lck"}).Return(okResult(), nil)

	out, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.NoError(t, err)

	assert.True(t, out.Recovered)
	assert.Empty(t, prompt.prompts, "safe fixes run without a confirmation")
	assert.False(t, f.recordExists())
	f.runner.AssertExpectations(t)
}

func TestReplayDeclineMovesToNextSuggestion(t *testing.T) {
	apt, err := pkgmgr.ByName("apt")
	require.NoError(t, err)
	prompt := &scriptPrompter{answers: []bool{false, true}}
	f := newOrchFixture(t, orchOptions{
		hint:    Hint{Platform: "ubuntu", Manager: "apt"},
		prompt:  prompt,
		manager: apt,
	})
	f.saveRecord(t, "apt-get install libfoo", "E: Unmet dependencies. Try 'apt --fix-broken install'.", 100)

	f.runner.On("Run", mock.Anything, []string{"apt-get", "update"}).Return(okResult(), nil)
	f.runner.On("Run", mock.Anything, []string{"apt-get", "upgrade", "-y"}).Return(okResult(), nil)
	f.runner.On("Run", mock.Anything, []string{"sh", "-c", "apt-get install libfoo"}).Return(okResult(), nil)

	out, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.NoError(t, err)

	assert.True(t, out.Recovered)
	assert.True(t, out.RetriedOriginal)
	require.Len(t, prompt.prompts, 2)
	assert.Contains(t, prompt.prompts[1], "needs root")
	assert.Contains(t, f.notify.joined(), "medium-risk operation")
	assert.Equal(t, 1, f.metrics.Snapshot().FixesDeclined)
	assert.False(t, f.recordExists())
	f.runner.AssertExpectations(t)
}

func TestReplayHighRiskDemandsStrongConfirm(t *testing.T) {
	prompt := &scriptPrompter{answers: []bool{true}}
	f := newOrchFixture(t, orchOptions{prompt: prompt})
	f.saveRecord(t, "apt-get install vim", "E: mkdir /var/cache/apt: Read-only file system", 30)
	f.runner.On("Run", mock.Anything, []string{"mount", "-o", "remount,rw", "/"}).Return(okResult(), nil)

	out, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.NoError(t, err)

	assert.True(t, out.Recovered)
	assert.Equal(t, []string{StrongConfirmToken}, prompt.tokens,
		"high risk requires the strong confirmation token")
	f.runner.AssertExpectations(t)
}

func TestReplayNoTerminalDeclines(t *testing.T) {
	apt, err := pkgmgr.ByName("apt")
	require.NoError(t, err)
	f := newOrchFixture(t, orchOptions{
		hint:    Hint{Platform: "ubuntu", Manager: "apt"},
		manager: apt,
	})
	f.saveRecord(t, "apt-get install libfoo", "E: Unmet dependencies.", 100)

	out, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.NoError(t, err)

	assert.False(t, out.Recovered)
	assert.True(t, f.recordExists())
	assert.Contains(t, f.notify.joined(), "no terminal to confirm")
	assert.Equal(t, 2, f.metrics.Snapshot().FixesDeclined)
	f.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestReplayFailedFixTriesNextSuggestion(t *testing.T) {
	lock := filepath.Join(t.TempDir(), "db.lck")
	writeFile(t, lock)
	prompt := &scriptPrompter{answers: []bool{true}}
	f := newOrchFixture(t, orchOptions{
		hint:    Hint{Platform: "arch", Manager: "pacman"},
		prompt:  prompt,
		manager: stubManager("pacman", []string{lock}, nil),
	})
	f.saveRecord(t, "pacman -S vim", "error: could not lock database: File exists", 1)
	f.runner.On("Run", mock.Anything, []string{"rm", "-f", "/var/lib/pacman/db.lck"}).
		Return(failedResult(1, "rm: cannot remove"), nil)

	out, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.NoError(t, err)

	assert.True(t, out.Recovered, "the clear_locks fallback recovers after the primary fails")
	require.NotNil(t, out.Applied)
	assert.Equal(t, "clear_locks", out.Applied.Strategy.Name)
	assert.NoFileExists(t, lock)
	assert.Contains(t, f.notify.joined(), "fix did not complete")

	snap := f.metrics.Snapshot()
	assert.Equal(t, 2, snap.FixesAttempted)
	assert.Equal(t, 1, snap.FixesFailed)
	assert.Equal(t, 1, snap.FixesSucceeded)
}

func TestReplayExhaustionKeepsRecord(t *testing.T) {
	prompt := &scriptPrompter{answers: []bool{false}}
	f := newOrchFixture(t, orchOptions{hint: Hint{Platform: "arch"}, prompt: prompt})
	f.saveRecord(t, "pacman -S vim", "error: could not lock database: File exists", 1)
	f.runner.On("Run", mock.Anything, []string{"rm", "-f", "/var/lib/pacman/db.lck"}).
		Return(failedResult(1, ""), nil)

	out, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.NoError(t, err)

	assert.False(t, out.Recovered)
	assert.True(t, f.recordExists(), "an unrecovered failure keeps its record for another try")
	assert.Contains(t, f.notify.joined(), "no suggestion recovered the failure")
}

func TestReplaySeedsCommandCapture(t *testing.T) {
	// The sudo elevation fix interpolates the recorded command even though
	// no pattern capture produced it.
	f := newOrchFixture(t, orchOptions{})
	f.saveRecord(t, "apt-get update", "E: Permission denied", 100)
	f.runner.On("Run", mock.Anything, []string{"sudo", "sh", "-c", "apt-get update"}).Return(okResult(), nil)

	prompt := &scriptPrompter{answers: []bool{true}}
	f.orch.prompt = prompt

	out, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.NoError(t, err)

	assert.True(t, out.Recovered)
	f.runner.AssertExpectations(t)
}

func TestReplayGuidancePropagates(t *testing.T) {
	t.Setenv("LANG", "en_US.UTF-8")
	t.Setenv("LC_ALL", "")
	f := newOrchFixture(t, orchOptions{})
	f.saveRecord(t, "apt-get install vim", "perl: warning: Setting locale failed.", 2)

	out, err := f.orch.Replay(context.Background(), ModeInteractive)
	require.NoError(t, err)

	assert.True(t, out.Recovered)
	assert.Equal(t, []string{"export LANG=C.UTF-8", "export LC_ALL=C.UTF-8"}, out.Guidance)
}

func TestNewOrchestratorDefaults(t *testing.T) {
	assert.Equal(t, AutoPolicy{
		MinConfidence:     0.9,
		MaxRisk:           RiskLow,
		MinSuccess:        0.8,
		AttemptsPerMinute: 3,
	}, DefaultAutoPolicy())

	// A zero-config orchestrator analyzes against an empty repository and
	// never matches, but it must not panic.
	orch := NewOrchestrator(nil)
	out := orch.HandleFailure(context.Background(),
		NewFailureEvent("true", nil, &sysexec.Result{ExitCode: 1, Stderr: "x"}))
	assert.Empty(t, out.Analyses)
	assert.False(t, out.Recovered)
}
