package recovery

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"pkgmedic/internal/pkgmgr"
	"pkgmedic/internal/sysexec"
)

// Notifier receives the human-facing progress lines the engine emits: every
// fix step is announced before it runs and every outcome is reported.
type Notifier interface {
	// Stepf announces an action about to run.
	Stepf(format string, args ...any)
	// Reportf reports an outcome or follow-up guidance.
	Reportf(format string, args ...any)
}

// NopNotifier discards all progress lines.
type NopNotifier struct{}

func (NopNotifier) Stepf(string, ...any)   {}
func (NopNotifier) Reportf(string, ...any) {}

// ExecOutcome reports what executing one strategy did. Failures are data
// here, not errors: a fix that did not work is a normal result the
// orchestrator ranks against the remaining suggestions.
type ExecOutcome struct {
	// Success reports whether the strategy completed.
	Success bool
	// RetryOriginal asks the orchestrator to re-run the failed command.
	RetryOriginal bool
	// Unimplemented marks Custom strategies and unknown built-in names.
	Unimplemented bool
	// Guidance carries instructions the engine deliberately does not apply
	// itself, such as persisting environment variables.
	Guidance []string
	// Reason explains a failure in one line.
	Reason string
}

func failure(reason string) ExecOutcome {
	return ExecOutcome{Reason: reason}
}

// InterpreterConfig wires the interpreter's collaborators. Runner is
// required; everything else has an inert default.
type InterpreterConfig struct {
	Runner sysexec.Runner
	// Manager is the detected package manager; nil when none was found,
	// which fails the strategies that need one.
	Manager *pkgmgr.Manager
	// Family is the platform family, for strategies conditioned on it.
	Family string
	Notify Notifier
	Logger *zap.Logger
}

// Interpreter executes fix strategies. One interpreter serves one process;
// it holds no per-fix state.
type Interpreter struct {
	runner sysexec.Runner
	mgr    *pkgmgr.Manager
	family string
	notify Notifier
	log    *zap.Logger
}

// NewInterpreter builds an interpreter from cfg.
func NewInterpreter(cfg *InterpreterConfig) *Interpreter {
	if cfg == nil {
		cfg = &InterpreterConfig{}
	}
	it := &Interpreter{
		runner: cfg.Runner,
		mgr:    cfg.Manager,
		family: cfg.Family,
		notify: cfg.Notify,
		log:    cfg.Logger,
	}
	if it.runner == nil {
		it.runner = sysexec.NewRunner(nil)
	}
	if it.notify == nil {
		it.notify = NopNotifier{}
	}
	if it.log == nil {
		it.log = zap.NewNop()
	}
	return it
}

// Execute runs one strategy with {name} placeholders substituted from
// captured. Unresolvable situations (unknown built-in, unsupported platform,
// missing payload) are reported outcomes; Execute never panics and never
// returns an error.
func (it *Interpreter) Execute(ctx context.Context, strategy FixStrategy, captured map[string]string) ExecOutcome {
	s := SubstituteStrategy(strategy, captured)
	it.log.Debug("executing fix strategy",
		zap.String("kind", s.Kind.String()),
		zap.String("action", s.Render()))

	switch s.Kind {
	case StrategyCommand:
		return it.execCommand(ctx, s)
	case StrategyCommandSequence:
		return it.execSequence(ctx, s)
	case StrategyBuiltIn:
		return it.execBuiltIn(ctx, s, captured)
	case StrategyRebuild:
		return it.execRebuild(ctx, s)
	case StrategyForceOverwrite:
		return it.execForceOverwrite(ctx, s, captured)
	case StrategyCleanRetry:
		return it.execCleanRetry(ctx, s)
	case StrategyUpdateComponent:
		return it.execUpdateComponent(ctx, s)
	case StrategyReconfigure:
		return it.execReconfigure(ctx, s)
	case StrategyEnvironmentFix:
		return it.execEnvironmentFix(s)
	case StrategyCustom:
		it.notify.Reportf("custom hook %q is not implemented", s.Name)
		return ExecOutcome{Unimplemented: true, Reason: "custom hook " + s.Name + " not implemented"}
	}

	it.notify.Reportf("strategy %q is not implemented", s.Kind)
	return ExecOutcome{Unimplemented: true, Reason: "unknown strategy kind"}
}

// runStep announces and runs one external command, reporting its outcome.
func (it *Interpreter) runStep(ctx context.Context, argv []string) bool {
	it.notify.Stepf("running: %s", strings.Join(argv, " "))
	res, err := it.runner.Run(ctx, argv)
	if err != nil {
		it.notify.Reportf("could not run %s: %v", argv[0], err)
		return false
	}
	if !res.Success() {
		it.notify.Reportf("%s exited with status %d%s", argv[0], res.ExitCode, stderrTail(res.Stderr))
		return false
	}
	return true
}

// stderrTail compacts the last stderr line for outcome reporting.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return ""
	}
	return ": " + last
}

func (it *Interpreter) execCommand(ctx context.Context, s FixStrategy) ExecOutcome {
	if len(s.Argv) == 0 {
		return failure("command strategy with no command")
	}
	if !it.runStep(ctx, s.Argv) {
		return failure("command failed")
	}
	return ExecOutcome{Success: true}
}

func (it *Interpreter) execSequence(ctx context.Context, s FixStrategy) ExecOutcome {
	if len(s.Sequence) == 0 {
		return failure("command sequence with no commands")
	}
	for i, step := range s.Sequence {
		if !it.runStep(ctx, step) {
			// Earlier steps stay applied; package operations are not
			// reversible in general.
			it.notify.Reportf("aborting after step %d of %d", i+1, len(s.Sequence))
			return failure(fmt.Sprintf("step %d of %d failed", i+1, len(s.Sequence)))
		}
	}
	return ExecOutcome{Success: true}
}

func (it *Interpreter) execBuiltIn(ctx context.Context, s FixStrategy, captured map[string]string) ExecOutcome {
	routine, ok := builtinRoutines[s.Name]
	if !ok {
		it.notify.Reportf("unknown built-in routine %q", s.Name)
		return ExecOutcome{Unimplemented: true, Reason: "unknown built-in " + s.Name}
	}
	it.notify.Stepf("built-in routine: %s", s.Name)
	return routine(ctx, it, captured)
}

func (it *Interpreter) execRebuild(ctx context.Context, s FixStrategy) ExecOutcome {
	if s.Name == "" || strings.Contains(s.Name, "{") {
		return failure("no package name to reinstall")
	}
	if it.mgr == nil {
		return failure("no package manager detected")
	}
	argv := it.mgr.Reinstall(s.Name)
	if argv == nil {
		return failure("reinstall not supported on " + it.mgr.Name)
	}
	if !it.runStep(ctx, argv) {
		return failure("reinstall failed")
	}
	return ExecOutcome{Success: true}
}

func (it *Interpreter) execForceOverwrite(ctx context.Context, s FixStrategy, captured map[string]string) ExecOutcome {
	if it.mgr == nil {
		return failure("no package manager detected")
	}
	pkg := captured["package"]
	if pkg == "" {
		return failure("no implicated package captured")
	}
	argv := it.mgr.ForceOverwrite(pkg, s.Globs)
	if argv == nil {
		return failure("forced overwrite not supported on " + it.mgr.Name)
	}
	if !it.runStep(ctx, argv) {
		return failure("forced overwrite failed")
	}
	return ExecOutcome{Success: true}
}

func (it *Interpreter) execCleanRetry(ctx context.Context, s FixStrategy) ExecOutcome {
	for i, step := range s.Sequence {
		if !it.runStep(ctx, step) {
			it.notify.Reportf("cleanup aborted at step %d of %d", i+1, len(s.Sequence))
			return failure(fmt.Sprintf("cleanup step %d failed", i+1))
		}
	}
	return ExecOutcome{Success: true, RetryOriginal: s.RetryOriginal}
}

// execUpdateComponent refreshes one named system component. The keyring and
// index components delegate to the manager; certificates are
// platform-conditioned.
func (it *Interpreter) execUpdateComponent(ctx context.Context, s FixStrategy) ExecOutcome {
	switch s.Name {
	case "keyring":
		if it.mgr == nil {
			return failure("no package manager detected")
		}
		seq := it.mgr.RefreshKeyring()
		if seq == nil {
			return failure("keyring refresh not supported on " + it.mgr.Name)
		}
		for _, argv := range seq {
			if !it.runStep(ctx, argv) {
				return failure("keyring refresh failed")
			}
		}
		return ExecOutcome{Success: true}
	case "ca-certificates":
		var argv []string
		switch it.family {
		case "debian", "arch", "alpine":
			argv = []string{"update-ca-certificates"}
		case "fedora", "suse":
			argv = []string{"update-ca-trust"}
		default:
			return failure("no certificate update command known for this platform")
		}
		if !it.runStep(ctx, argv) {
			return failure("certificate update failed")
		}
		return ExecOutcome{Success: true}
	case "indexes":
		if it.mgr == nil {
			return failure("no package manager detected")
		}
		if !it.runStep(ctx, it.mgr.Refresh()) {
			return failure("index refresh failed")
		}
		return ExecOutcome{Success: true}
	}
	it.notify.Reportf("unknown component %q", s.Name)
	return failure("unknown component " + s.Name)
}

func (it *Interpreter) execReconfigure(ctx context.Context, s FixStrategy) ExecOutcome {
	if it.mgr == nil {
		return failure("no package manager detected")
	}
	argv := it.mgr.Reconfigure(s.Name)
	if argv == nil {
		return failure("reconfiguration not supported on " + it.mgr.Name)
	}
	if !it.runStep(ctx, argv) {
		return failure("reconfiguration failed")
	}
	return ExecOutcome{Success: true}
}

func (it *Interpreter) execEnvironmentFix(s FixStrategy) ExecOutcome {
	if len(s.Env) == 0 {
		return failure("environment fix with no variables")
	}
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ExecOutcome{Success: true}
	for _, k := range keys {
		v := s.Env[k]
		it.notify.Stepf("setting %s=%s", k, v)
		if err := os.Setenv(k, v); err != nil {
			it.notify.Reportf("could not set %s: %v", k, err)
			return failure("setting " + k + " failed")
		}
		if s.Permanent {
			out.Guidance = append(out.Guidance, fmt.Sprintf("export %s=%s", k, v))
		}
	}
	if s.Permanent {
		// Editing shell profiles is the user's call, never the engine's.
		it.notify.Reportf("to make this permanent, add to your shell profile:")
		for _, line := range out.Guidance {
			it.notify.Reportf("  %s", line)
		}
	}
	return out
}
