package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"pkgmedic/internal/pkgmgr"
	"pkgmedic/internal/recovery"
)

// Op is a logical package-manager operation exposed as a subcommand.
type Op string

const (
	OpInstall Op = "install"
	OpRemove  Op = "remove"
	OpRefresh Op = "refresh"
	OpUpgrade Op = "upgrade"
)

// RunWrapped executes argv and, on failure, routes the captured output
// through the recovery engine. The returned exit code is the wrapped
// command's own unless recovery succeeded, in which case it is zero.
func (a *App) RunWrapped(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return 1, errors.New("cli: no command to run")
	}

	res, err := a.runner.Run(ctx, argv)
	if err != nil {
		return 1, err
	}
	if res.Success() {
		return 0, nil
	}

	ev := recovery.NewFailureEvent(strings.Join(argv, " "), argv, res)
	out := a.orch.HandleFailure(ctx, ev)

	if a.output != formatTable {
		if err := a.writeStructured(out); err != nil {
			return 1, err
		}
	} else if !out.Recovered {
		fmt.Fprintln(a.out)
		a.render.Analyses(out.Analyses)
		a.render.Outcome(out)
		if len(out.Analyses) > 0 {
			fmt.Fprintln(a.out, "\nRun `pkgmedic diagnose` to walk through the fixes interactively.")
		}
	}

	if out.Recovered {
		return 0, nil
	}
	return res.ExitCode, nil
}

// RunManagerOp builds the manager command for op and runs it through the
// failure path.
func (a *App) RunManagerOp(ctx context.Context, op Op, pkgs []string) (int, error) {
	if a.mgr == nil {
		return 1, pkgmgr.ErrNoManager
	}

	var argv []string
	switch op {
	case OpInstall, OpRemove:
		if len(pkgs) == 0 {
			return 1, fmt.Errorf("cli: %s needs at least one package name", op)
		}
		if op == OpInstall {
			argv = a.mgr.Install(pkgs...)
		} else {
			argv = a.mgr.Remove(pkgs...)
		}
	case OpRefresh:
		argv = a.mgr.Refresh()
	case OpUpgrade:
		argv = a.mgr.Upgrade()
	default:
		return 1, fmt.Errorf("cli: unknown operation %q", op)
	}
	if len(argv) == 0 {
		return 1, fmt.Errorf("cli: %s does not support %s", a.mgr.Name, op)
	}

	a.console.Stepf("running: %s", strings.Join(argv, " "))
	return a.RunWrapped(ctx, argv)
}

// RunDiagnose replays the last recorded failure. Interactive by default;
// dryRun describes what would be offered without executing anything.
func (a *App) RunDiagnose(ctx context.Context, dryRun bool) (int, error) {
	rec, err := a.store.Load()
	if errors.Is(err, recovery.ErrNoRecord) {
		fmt.Fprintln(a.out, "No recorded failure to analyze.")
		return 0, nil
	}
	if err != nil {
		return 1, err
	}
	if a.output == formatTable {
		a.render.Record(rec)
	}

	mode := recovery.ModeInteractive
	if dryRun {
		mode = recovery.ModeDryRun
	}
	out, err := a.orch.Replay(ctx, mode)
	if err != nil {
		return 1, err
	}

	if a.output != formatTable {
		payload := struct {
			recovery.Outcome `yaml:",inline"`
			Metrics          recovery.MetricsSnapshot `json:"metrics" yaml:"metrics"`
		}{Outcome: *out, Metrics: a.metrics.Snapshot()}
		if err := a.writeStructured(payload); err != nil {
			return 1, err
		}
		return 0, nil
	}
	fmt.Fprintln(a.out)
	a.render.Analyses(out.Analyses)
	a.render.Outcome(out)
	return 0, nil
}

// RunPatterns lists the loaded pattern repository.
func (a *App) RunPatterns() (int, error) {
	if a.output == formatTable {
		a.render.Patterns(a.repo.Patterns())
		return 0, nil
	}
	payload := struct {
		Patterns []recovery.ErrorPattern `json:"patterns" yaml:"patterns"`
	}{Patterns: a.repo.Patterns()}
	if err := a.writeStructured(payload); err != nil {
		return 1, err
	}
	return 0, nil
}

// writeStructured encodes v in the selected machine-readable format.
func (a *App) writeStructured(v any) error {
	switch a.output {
	case formatJSON:
		return writeJSON(a.out, v)
	case formatYAML:
		return writeYAML(a.out, v)
	}
	return fmt.Errorf("cli: unsupported output format: %s", a.output)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
