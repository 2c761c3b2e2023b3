package recovery

import (
	"context"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"pkgmedic/internal/pkgmgr"
)

// builtinRoutine is one engine-internal remediation. Routines report through
// the interpreter's notifier like any other fix step.
type builtinRoutine func(ctx context.Context, it *Interpreter, captured map[string]string) ExecOutcome

// builtinRoutines is the closed set of BuiltIn strategy targets. A name
// outside this map is reported as unimplemented, never guessed at.
var builtinRoutines = map[string]builtinRoutine{
	"clear_locks":         builtinClearLocks,
	"purge_cache":         builtinPurgeCache,
	"refresh_keyring":     builtinRefreshKeyring,
	"refresh_indexes":     builtinRefreshIndexes,
	"install_build_tools": builtinInstallBuildTools,
	"update_all":          builtinUpdateAll,
}

// builtinClearLocks removes known package-manager lock files. Removing an
// already-removed lock is a no-op, so running the routine twice ends in the
// same state as running it once.
func builtinClearLocks(_ context.Context, it *Interpreter, _ map[string]string) ExecOutcome {
	paths := pkgmgr.AllLockPaths()
	if it.mgr != nil {
		paths = it.mgr.LockPaths
	}

	removed := 0
	for _, path := range paths {
		it.notify.Stepf("removing lock file %s", path)
		err := os.Remove(path)
		switch {
		case err == nil:
			removed++
		case os.IsNotExist(err):
			// Already clear.
		default:
			it.notify.Reportf("could not remove %s: %v", path, err)
			return failure("removing " + path + " failed")
		}
	}
	it.notify.Reportf("cleared %d lock file(s)", removed)
	return ExecOutcome{Success: true}
}

// builtinPurgeCache drops the package download cache through the manager and
// sweeps any cached artifacts its glob patterns still match.
func builtinPurgeCache(ctx context.Context, it *Interpreter, _ map[string]string) ExecOutcome {
	if it.mgr == nil {
		return failure("no package manager detected")
	}
	if !it.runStep(ctx, it.mgr.PurgeCache()) {
		return failure("cache purge failed")
	}

	removed := 0
	for _, pattern := range it.mgr.CacheGlobs {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			it.notify.Reportf("skipping cache pattern %s: %v", pattern, err)
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		it.notify.Reportf("removed %d leftover cache file(s)", removed)
	}
	return ExecOutcome{Success: true}
}

func builtinRefreshKeyring(ctx context.Context, it *Interpreter, _ map[string]string) ExecOutcome {
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
}

func builtinRefreshIndexes(ctx context.Context, it *Interpreter, _ map[string]string) ExecOutcome {
	if it.mgr == nil {
		return failure("no package manager detected")
	}
	if !it.runStep(ctx, it.mgr.Refresh()) {
		return failure("index refresh failed")
	}
	return ExecOutcome{Success: true}
}

func builtinInstallBuildTools(ctx context.Context, it *Interpreter, _ map[string]string) ExecOutcome {
	if it.mgr == nil {
		return failure("no package manager detected")
	}
	if !it.runStep(ctx, it.mgr.InstallBuildTools()) {
		return failure("build tool installation failed")
	}
	return ExecOutcome{Success: true}
}

// builtinUpdateAll refreshes the indexes, upgrades everything, and asks the
// orchestrator to retry the original command against the updated system.
func builtinUpdateAll(ctx context.Context, it *Interpreter, _ map[string]string) ExecOutcome {
	if it.mgr == nil {
		return failure("no package manager detected")
	}
	if !it.runStep(ctx, it.mgr.Refresh()) {
		return failure("index refresh failed")
	}
	if !it.runStep(ctx, it.mgr.Upgrade()) {
		return failure("upgrade failed")
	}
	return ExecOutcome{Success: true, RetryOriginal: true}
}
