package recovery

import (
	"fmt"
	"sort"
	"strings"
)

// StrategyKind discriminates FixStrategy variants. The set is closed: every
// consumer (interpreter, risk derivation, rendering) switches on it
// exhaustively and treats anything else as unimplemented.
type StrategyKind int

const (
	StrategyCommand StrategyKind = iota
	StrategyCommandSequence
	StrategyBuiltIn
	StrategyRebuild
	StrategyForceOverwrite
	StrategyCleanRetry
	StrategyUpdateComponent
	StrategyReconfigure
	StrategyEnvironmentFix
	StrategyCustom
)

var strategyKindNames = map[StrategyKind]string{
	StrategyCommand:         "command",
	StrategyCommandSequence: "command_sequence",
	StrategyBuiltIn:         "built_in",
	StrategyRebuild:         "rebuild",
	StrategyForceOverwrite:  "force_overwrite",
	StrategyCleanRetry:      "clean_retry",
	StrategyUpdateComponent: "update_component",
	StrategyReconfigure:     "reconfigure",
	StrategyEnvironmentFix:  "environment_fix",
	StrategyCustom:          "custom",
}

func (k StrategyKind) String() string {
	if name, ok := strategyKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(k))
}

// MarshalJSON renders the kind name instead of its ordinal.
func (k StrategyKind) MarshalJSON() ([]byte, error) { return marshalName(k.String()) }

// MarshalYAML renders the kind name instead of its ordinal.
func (k StrategyKind) MarshalYAML() (interface{}, error) { return k.String(), nil }

// ParseStrategyKind resolves a kind name from a pattern definition.
func ParseStrategyKind(v string) (StrategyKind, error) {
	needle := strings.ToLower(strings.TrimSpace(v))
	for k, name := range strategyKindNames {
		if name == needle {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown fix strategy %q", v)
}

// FixStrategy is a closed tagged union of remediation mechanisms. Only the
// payload fields of the active Kind are meaningful; construct values through
// the typed constructors below.
type FixStrategy struct {
	Kind StrategyKind `json:"kind" yaml:"kind"`

	// Argv is the Command payload.
	Argv []string `json:"argv,omitempty" yaml:"argv,omitempty"`
	// Sequence holds CommandSequence steps or CleanRetry clean commands.
	Sequence [][]string `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	// Name holds the BuiltIn routine, Rebuild package, UpdateComponent
	// component, Reconfigure service, or Custom hook name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Globs are the ForceOverwrite file patterns.
	Globs []string `json:"globs,omitempty" yaml:"globs,omitempty"`
	// RetryOriginal asks the orchestrator to re-run the failed command after
	// a CleanRetry's clean steps succeed.
	RetryOriginal bool `json:"retry_original,omitempty" yaml:"retry_original,omitempty"`
	// Env is the EnvironmentFix variable map.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	// Permanent marks an EnvironmentFix the user should persist.
	Permanent bool `json:"permanent,omitempty" yaml:"permanent,omitempty"`
}

// Command runs one external command.
func Command(argv ...string) FixStrategy {
	return FixStrategy{Kind: StrategyCommand, Argv: argv}
}

// CommandSequence runs commands in order, aborting at the first failure.
func CommandSequence(steps ...[]string) FixStrategy {
	return FixStrategy{Kind: StrategyCommandSequence, Sequence: steps}
}

// BuiltIn invokes a named engine-internal remediation routine.
func BuiltIn(name string) FixStrategy {
	return FixStrategy{Kind: StrategyBuiltIn, Name: name}
}

// Rebuild reinstalls a named package in place.
func Rebuild(pkg string) FixStrategy {
	return FixStrategy{Kind: StrategyRebuild, Name: pkg}
}

// ForceOverwrite reinstalls the implicated package, overwriting conflicting
// files matched by globs.
func ForceOverwrite(globs ...string) FixStrategy {
	return FixStrategy{Kind: StrategyForceOverwrite, Globs: globs}
}

// CleanRetry runs cleanup commands and, when retry is set, signals the
// orchestrator to re-run the original failed command.
func CleanRetry(retry bool, cleans ...[]string) FixStrategy {
	return FixStrategy{Kind: StrategyCleanRetry, Sequence: cleans, RetryOriginal: retry}
}

// UpdateComponent updates a named system component such as "keyring".
func UpdateComponent(name string) FixStrategy {
	return FixStrategy{Kind: StrategyUpdateComponent, Name: name}
}

// Reconfigure re-runs a service's package configuration step.
func Reconfigure(service string) FixStrategy {
	return FixStrategy{Kind: StrategyReconfigure, Name: service}
}

// EnvironmentFix sets environment variables in the current process. With
// permanent set, the engine additionally emits guidance on persisting them;
// it never edits shell profiles itself.
func EnvironmentFix(permanent bool, env map[string]string) FixStrategy {
	return FixStrategy{Kind: StrategyEnvironmentFix, Env: env, Permanent: permanent}
}

// Custom names a hook the engine does not model; executing it always reports
// "not implemented".
func Custom(name string) FixStrategy {
	return FixStrategy{Kind: StrategyCustom, Name: name}
}

// Render returns a short human description of what the strategy will do,
// used for step announcements, dry runs, and suggestion deduplication.
func (s FixStrategy) Render() string {
	switch s.Kind {
	case StrategyCommand:
		return "run: " + strings.Join(s.Argv, " ")
	case StrategyCommandSequence:
		parts := make([]string, 0, len(s.Sequence))
		for _, step := range s.Sequence {
			parts = append(parts, strings.Join(step, " "))
		}
		return fmt.Sprintf("run %d commands: %s", len(s.Sequence), strings.Join(parts, "; "))
	case StrategyBuiltIn:
		return "built-in routine: " + s.Name
	case StrategyRebuild:
		return "reinstall package: " + s.Name
	case StrategyForceOverwrite:
		if len(s.Globs) == 0 {
			return "reinstall with forced file overwrite"
		}
		return "reinstall with forced overwrite of: " + strings.Join(s.Globs, ", ")
	case StrategyCleanRetry:
		if len(s.Sequence) == 0 {
			if s.RetryOriginal {
				return "retry the original command"
			}
			return "no cleanup requested"
		}
		parts := make([]string, 0, len(s.Sequence))
		for _, step := range s.Sequence {
			parts = append(parts, strings.Join(step, " "))
		}
		desc := "clean up (" + strings.Join(parts, "; ") + ")"
		if s.RetryOriginal {
			desc += ", then retry the original command"
		}
		return desc
	case StrategyUpdateComponent:
		return "update component: " + s.Name
	case StrategyReconfigure:
		return "reconfigure: " + s.Name
	case StrategyEnvironmentFix:
		keys := make([]string, 0, len(s.Env))
		for k := range s.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+s.Env[k])
		}
		desc := "set environment: " + strings.Join(pairs, " ")
		if s.Permanent {
			desc += " (persist in your shell profile)"
		}
		return desc
	case StrategyCustom:
		return "custom hook: " + s.Name
	}
	return "unknown strategy"
}

// equalStrategy reports whether two strategies would perform the same action.
// Used to avoid suggesting the primary fix twice.
func equalStrategy(a, b FixStrategy) bool {
	return a.Kind == b.Kind && a.Render() == b.Render()
}
