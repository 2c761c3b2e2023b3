// Package cli implements the pkgmedic commands. The cobra layer in
// cmd/pkgmedic stays a thin flag parser; everything testable lives here.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"pkgmedic/internal/config"
	"pkgmedic/internal/logging"
	"pkgmedic/internal/pkgmgr"
	"pkgmedic/internal/platform"
	"pkgmedic/internal/recovery"
	"pkgmedic/internal/sysexec"
	"pkgmedic/internal/ui"
)

// Output format names accepted by the -o flag.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// Options carries the command-line switches that are not configuration:
// they shape one invocation, not the tool's persistent behavior.
type Options struct {
	// Output selects table, json, or yaml. Empty means table.
	Output string
	// Verbose adds the concrete commands behind each suggestion.
	Verbose bool
	// Manager forces a package manager by name instead of probing PATH.
	Manager string

	// Out and ErrOut default to the real stdout and stderr.
	Out    io.Writer
	ErrOut io.Writer
	// In supplies prompt answers. Defaults to os.Stdin.
	In io.Reader
	// ForceTTY treats In as interactive without probing it (tests).
	ForceTTY bool
	// Runner substitutes command execution (tests).
	Runner sysexec.Runner
}

// App is one fully wired invocation of the tool.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	out     io.Writer
	output  string
	console *ui.Console
	render  *ui.Renderer
	runner  sysexec.Runner
	store   *recovery.RecordStore
	repo    *recovery.Repository
	orch    *recovery.Orchestrator
	metrics *recovery.Metrics
	mgr     *pkgmgr.Manager
	hint    recovery.Hint
}

// NewApp assembles the engine from configuration. Platform and manager
// detection failures are tolerated: the tool still analyzes failures, it
// just filters less and refuses manager-specific fixes.
func NewApp(cfg *config.Config, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := opts.ErrOut
	if errOut == nil {
		errOut = os.Stderr
	}
	output := opts.Output
	if output == "" {
		output = formatTable
	}
	switch output {
	case formatTable, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("cli: unsupported output format: %s", output)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}

	// Machine-readable output owns stdout; progress lines and the wrapped
	// command's live streams move to stderr so the encoding stays parseable.
	humanOut := out
	if output != formatTable {
		humanOut = errOut
	}

	console := ui.NewConsole(&ui.ConsoleConfig{
		Out:      humanOut,
		In:       opts.In,
		Color:    cfg.UI.Color,
		ForceTTY: opts.ForceTTY,
	})

	hint := recovery.Hint{}
	family := ""
	if info, err := platform.Detect(); err != nil {
		log.Warn("platform detection failed", zap.Error(err))
	} else {
		hint.Platform = info.ID
		family = info.Family
		log.Debug("platform detected",
			zap.String("id", info.ID), zap.String("family", info.Family))
	}

	var mgr *pkgmgr.Manager
	if opts.Manager != "" {
		if mgr, err = pkgmgr.ByName(opts.Manager); err != nil {
			return nil, err
		}
	} else if mgr, err = pkgmgr.Detect(); err != nil {
		if !errors.Is(err, pkgmgr.ErrNoManager) {
			return nil, err
		}
		log.Info("no package manager detected; manager-specific fixes are off")
		mgr = nil
	}
	if mgr != nil {
		hint.Manager = mgr.Name
		if family == "" {
			family = mgr.Family
		}
	}

	user, err := recovery.LoadPatternFiles(cfg.Patterns.Paths)
	if err != nil {
		return nil, err
	}
	repo, err := recovery.NewRepository(user)
	if err != nil {
		return nil, err
	}

	stateDir, err := cfg.StateDir()
	if err != nil {
		return nil, err
	}
	store := recovery.NewRecordStore(stateDir)

	runner := opts.Runner
	if runner == nil {
		runner = sysexec.NewRunner(log.Named("exec")).Tee(humanOut, errOut)
	}

	maxRisk, err := recovery.ParseRiskLevel(cfg.Recovery.MaxRisk)
	if err != nil {
		return nil, fmt.Errorf("cli: %w", err)
	}
	metrics := &recovery.Metrics{}

	orch := recovery.NewOrchestrator(&recovery.OrchestratorConfig{
		Analyzer: recovery.NewAnalyzer(repo, log.Named("analyzer")),
		Interp: recovery.NewInterpreter(&recovery.InterpreterConfig{
			Runner:  runner,
			Manager: mgr,
			Family:  family,
			Notify:  console,
			Logger:  log.Named("interp"),
		}),
		Store:   store,
		Runner:  runner,
		Prompt:  console,
		Notify:  console,
		Metrics: metrics,
		Logger:  log.Named("recovery"),
		Hint:    hint,
		AutoFix: cfg.Recovery.Auto,
		Auto: &recovery.AutoPolicy{
			MinConfidence:     cfg.Recovery.MinConfidence,
			MaxRisk:           maxRisk,
			MinSuccess:        cfg.Recovery.MinSuccess,
			AttemptsPerMinute: cfg.Recovery.AttemptsPerMinute,
		},
	})

	return &App{
		cfg:     cfg,
		log:     log,
		out:     out,
		output:  output,
		console: console,
		render:  ui.NewRenderer(out, opts.Verbose),
		runner:  runner,
		store:   store,
		repo:    repo,
		orch:    orch,
		metrics: metrics,
		mgr:     mgr,
		hint:    hint,
	}, nil
}

// Close flushes the logger.
func (a *App) Close() {
	logging.Sync(a.log)
}

// Metrics exposes the engine counters for the current invocation.
func (a *App) Metrics() recovery.MetricsSnapshot {
	return a.metrics.Snapshot()
}
