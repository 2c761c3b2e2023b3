package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgmedic/internal/config"
	"pkgmedic/internal/recovery"
	"pkgmedic/internal/sysexec"
)

// scriptRunner plays back queued results in order; once the queue is empty
// every command succeeds. It records every argv it was asked to run.
type scriptRunner struct {
	calls   [][]string
	results []*sysexec.Result
}

func (r *scriptRunner) Run(_ context.Context, argv []string) (*sysexec.Result, error) {
	r.calls = append(r.calls, append([]string(nil), argv...))
	if len(r.results) == 0 {
		return &sysexec.Result{Argv: argv}, nil
	}
	res := r.results[0]
	r.results = r.results[1:]
	if res.Argv == nil {
		res.Argv = argv
	}
	return res, nil
}

func failed(code int, stderr string) *sysexec.Result {
	return &sysexec.Result{ExitCode: code, Stderr: stderr}
}

// widgetPack is a deterministic test pattern: unrestricted by platform and
// manager, thresholds that pass the default auto policy.
const widgetPack = `patterns:
  - id: test/widget-cache
    name: Widget cache corrupted
    description: The widget cache is damaged and must be rebuilt.
    category: database
    severity: critical
    matchers:
      - location: stderr
        regex: 'widget cache corrupted'
    fix:
      kind: command
      argv: ["widgetd", "--rebuild"]
    success_rate: 0.9
`

type appFixture struct {
	app    *App
	runner *scriptRunner
	out    *bytes.Buffer
	errOut *bytes.Buffer
	state  string
}

type fixtureOptions struct {
	mutateCfg func(*config.Config)
	output    string
	manager   string
	input     io.Reader
	forceTTY  bool
	packs     []string
}

func newTestApp(t *testing.T, fo fixtureOptions) *appFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.State.Dir = t.TempDir()
	cfg.UI.Color = "never"
	cfg.Patterns.Paths = fo.packs
	if fo.mutateCfg != nil {
		fo.mutateCfg(cfg)
	}

	manager := fo.manager
	if manager == "" {
		manager = "apt"
	}
	runner := &scriptRunner{}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	app, err := NewApp(cfg, &Options{
		Output:   fo.output,
		Manager:  manager,
		Out:      out,
		ErrOut:   errOut,
		In:       fo.input,
		ForceTTY: fo.forceTTY,
		Runner:   runner,
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	return &appFixture{app: app, runner: runner, out: out, errOut: errOut, state: cfg.State.Dir}
}

func writePack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (f *appFixture) seedRecord(t *testing.T, command, stderr string, exitCode int) {
	t.Helper()
	store := recovery.NewRecordStore(f.state)
	require.NoError(t, store.Save(&recovery.Record{
		Command:   command,
		ExitCode:  exitCode,
		Stderr:    stderr,
		Timestamp: time.Now(),
	}))
}

func (f *appFixture) recordExists(t *testing.T) bool {
	t.Helper()
	_, err := recovery.NewRecordStore(f.state).Load()
	if errors.Is(err, recovery.ErrNoRecord) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestNewAppRejectsUnknownManager(t *testing.T) {
	cfg := config.Default()
	cfg.State.Dir = t.TempDir()
	_, err := NewApp(cfg, &Options{Manager: "slackpkg", Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown package manager")
}

func TestNewAppRejectsUnknownOutputFormat(t *testing.T) {
	cfg := config.Default()
	cfg.State.Dir = t.TempDir()
	_, err := NewApp(cfg, &Options{Output: "xml", Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format: xml")
}

func TestNewAppRejectsBadUserPack(t *testing.T) {
	pack := writePack(t, "patterns:\n  - id: bad/no-matchers\n    name: x\n    category: network\n    severity: low\n    fix:\n      kind: command\n      argv: [\"true\"]\n    success_rate: 0.5\n")
	cfg := config.Default()
	cfg.State.Dir = t.TempDir()
	cfg.Patterns.Paths = []string{pack}
	_, err := NewApp(cfg, &Options{Manager: "apt", Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad/no-matchers")
}

func TestRunWrappedSuccessIsQuiet(t *testing.T) {
	f := newTestApp(t, fixtureOptions{})
	code, err := f.app.RunWrapped(context.Background(), []string{"true"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.False(t, f.recordExists(t), "successful runs leave no record")
}

func TestRunWrappedEmptyArgv(t *testing.T) {
	f := newTestApp(t, fixtureOptions{})
	_, err := f.app.RunWrapped(context.Background(), nil)
	require.Error(t, err)
}

func TestRunWrappedFailureAnalyzesAndPropagatesExit(t *testing.T) {
	f := newTestApp(t, fixtureOptions{})
	f.runner.results = []*sysexec.Result{
		failed(1, "rm: cannot remove '/usr/lib/x': Permission denied\n"),
	}

	code, err := f.app.RunWrapped(context.Background(), []string{"rm", "/usr/lib/x"})
	require.NoError(t, err)
	assert.Equal(t, 1, code, "the wrapped command's exit code survives")
	assert.True(t, f.recordExists(t))

	out := f.out.String()
	assert.Contains(t, out, "Failure Analysis")
	assert.Contains(t, out, "Insufficient privileges")
	assert.Contains(t, out, "confidence", "auto-fix skip reasons are shown")
	assert.Contains(t, out, "pkgmedic diagnose")

	snap := f.app.Metrics()
	assert.Equal(t, 1, snap.FailuresSeen)
	assert.Equal(t, 1, snap.AutoSkipped)
	assert.Equal(t, 0, snap.FixesAttempted)
}

func TestRunWrappedAutoFixRecovers(t *testing.T) {
	pack := writePack(t, widgetPack)
	f := newTestApp(t, fixtureOptions{packs: []string{pack}})
	f.runner.results = []*sysexec.Result{
		failed(3, "error: widget cache corrupted\n"),
	}

	code, err := f.app.RunWrapped(context.Background(), []string{"widgetd", "sync"})
	require.NoError(t, err)
	assert.Equal(t, 0, code, "recovery converts the failure into success")
	assert.False(t, f.recordExists(t), "recovery clears the record")

	require.Len(t, f.runner.calls, 2)
	assert.Equal(t, []string{"widgetd", "--rebuild"}, f.runner.calls[1])

	out := f.out.String()
	assert.Contains(t, out, "applying fix automatically")
	assert.Contains(t, out, "recovered")

	snap := f.app.Metrics()
	assert.Equal(t, 1, snap.FixesAttempted)
	assert.Equal(t, 1, snap.FixesSucceeded)
}

func TestRunWrappedAutoDisabled(t *testing.T) {
	pack := writePack(t, widgetPack)
	f := newTestApp(t, fixtureOptions{
		packs:     []string{pack},
		mutateCfg: func(c *config.Config) { c.Recovery.Auto = false },
	})
	f.runner.results = []*sysexec.Result{
		failed(3, "error: widget cache corrupted\n"),
	}

	code, err := f.app.RunWrapped(context.Background(), []string{"widgetd", "sync"})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	require.Len(t, f.runner.calls, 1, "nothing beyond the wrapped command ran")
	assert.Contains(t, f.out.String(), "automatic remediation is disabled")
}

func TestRunWrappedStructuredOutputKeepsStdoutClean(t *testing.T) {
	f := newTestApp(t, fixtureOptions{output: "json"})
	f.runner.results = []*sysexec.Result{
		failed(7, "something utterly unknown broke\n"),
	}

	code, err := f.app.RunWrapped(context.Background(), []string{"frob"})
	require.NoError(t, err)
	assert.Equal(t, 7, code)

	var decoded struct {
		Recovered bool `json:"recovered"`
		Analyses  []struct {
			Confidence float64 `json:"confidence"`
		} `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &decoded), "stdout must be pure JSON: %s", f.out.String())
	assert.False(t, decoded.Recovered)
	assert.Empty(t, decoded.Analyses)
	assert.Contains(t, f.errOut.String(), "no known failure pattern matched",
		"progress lines move to stderr in structured mode")
}

func TestRunManagerOpBuildsArgv(t *testing.T) {
	f := newTestApp(t, fixtureOptions{manager: "apt"})
	code, err := f.app.RunManagerOp(context.Background(), OpInstall, []string{"curl", "jq"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	require.Len(t, f.runner.calls, 1)
	assert.Equal(t, []string{"apt-get", "install", "-y", "curl", "jq"}, f.runner.calls[0])
	assert.Contains(t, f.out.String(), "running: apt-get install -y curl jq")
}

func TestRunManagerOpRefreshNeedsNoPackages(t *testing.T) {
	f := newTestApp(t, fixtureOptions{manager: "pacman"})
	code, err := f.app.RunManagerOp(context.Background(), OpRefresh, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	require.Len(t, f.runner.calls, 1)
	assert.Equal(t, []string{"pacman", "-Sy"}, f.runner.calls[0])
}

func TestRunManagerOpValidation(t *testing.T) {
	f := newTestApp(t, fixtureOptions{})

	_, err := f.app.RunManagerOp(context.Background(), OpInstall, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one package")

	_, err = f.app.RunManagerOp(context.Background(), Op("dance"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")
}

func TestRunDiagnoseWithoutRecord(t *testing.T) {
	f := newTestApp(t, fixtureOptions{})
	code, err := f.app.RunDiagnose(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.out.String(), "No recorded failure to analyze.")
}

func TestRunDiagnoseDryRunExecutesNothing(t *testing.T) {
	pack := writePack(t, widgetPack)
	f := newTestApp(t, fixtureOptions{packs: []string{pack}})
	f.seedRecord(t, "widgetd sync", "error: widget cache corrupted\n", 3)

	code, err := f.app.RunDiagnose(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, f.runner.calls, "dry-run executes nothing")

	out := f.out.String()
	assert.Contains(t, out, "Last failure: widgetd sync")
	assert.Contains(t, out, "would offer")
	assert.Contains(t, out, "Widget cache corrupted")
	assert.True(t, f.recordExists(t), "dry-run keeps the record")
}

func TestRunDiagnoseInteractiveApplies(t *testing.T) {
	pack := writePack(t, widgetPack)
	f := newTestApp(t, fixtureOptions{
		packs:    []string{pack},
		input:    strings.NewReader("y\n"),
		forceTTY: true,
	})
	f.seedRecord(t, "widgetd sync", "error: widget cache corrupted\n", 3)

	code, err := f.app.RunDiagnose(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	require.Len(t, f.runner.calls, 1)
	assert.Equal(t, []string{"widgetd", "--rebuild"}, f.runner.calls[0])
	assert.Contains(t, f.out.String(), "Apply fix")
	assert.Contains(t, f.out.String(), "✅ Recovered")
	assert.False(t, f.recordExists(t))
}

func TestRunDiagnoseYAMLOutput(t *testing.T) {
	pack := writePack(t, widgetPack)
	f := newTestApp(t, fixtureOptions{packs: []string{pack}, output: "yaml"})
	f.seedRecord(t, "widgetd sync", "error: widget cache corrupted\n", 3)

	code, err := f.app.RunDiagnose(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out := f.out.String()
	assert.Contains(t, out, "recovered: false")
	assert.Contains(t, out, "test/widget-cache")
	assert.Contains(t, out, "metrics:")
	assert.Contains(t, out, "patterns_matched: 1")
	assert.NotContains(t, out, "📋", "no table decoration in structured output")
	assert.Contains(t, f.errOut.String(), "would offer")
}

func TestRunPatternsTable(t *testing.T) {
	pack := writePack(t, widgetPack)
	f := newTestApp(t, fixtureOptions{packs: []string{pack}})
	code, err := f.app.RunPatterns()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out := f.out.String()
	assert.Contains(t, out, "Pattern catalog")
	assert.Contains(t, out, "debian/dpkg-lock-held", "built-ins are always listed")
	assert.Contains(t, out, "test/widget-cache", "user packs are listed after built-ins")
}

func TestRunPatternsJSON(t *testing.T) {
	f := newTestApp(t, fixtureOptions{output: "json"})
	code, err := f.app.RunPatterns()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	var decoded struct {
		Patterns []struct {
			ID       string  `json:"id"`
			Severity string  `json:"severity"`
			Success  float64 `json:"success_rate"`
		} `json:"patterns"`
	}
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &decoded))
	assert.GreaterOrEqual(t, len(decoded.Patterns), 24)

	ids := make(map[string]bool, len(decoded.Patterns))
	for _, p := range decoded.Patterns {
		ids[p.ID] = true
	}
	assert.True(t, ids["fedora/rpmdb-corrupt"])
	assert.True(t, ids["common/no-space"])
}
