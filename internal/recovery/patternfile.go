package recovery

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// patternFile is the YAML shape of a user pattern pack. Enums travel as
// strings and regexes as source text; conversion to ErrorPattern reuses the
// same validation the built-ins go through.
type patternFile struct {
	Patterns []patternDef `yaml:"patterns"`
}

type patternDef struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Category    string       `yaml:"category"`
	Severity    string       `yaml:"severity"`
	Matchers    []matcherDef `yaml:"matchers"`
	Fix         strategyDef  `yaml:"fix"`
	SuccessRate float64      `yaml:"success_rate"`
	Platforms   []string     `yaml:"platforms,omitempty"`
	Managers    []string     `yaml:"managers,omitempty"`
	Risk        string       `yaml:"risk,omitempty"`
}

type matcherDef struct {
	Location string   `yaml:"location"`
	Regex    string   `yaml:"regex,omitempty"`
	ExitCode int      `yaml:"exit_code,omitempty"`
	Captures []string `yaml:"captures,omitempty"`
}

type strategyDef struct {
	Kind          string            `yaml:"kind"`
	Argv          []string          `yaml:"argv,omitempty"`
	Sequence      [][]string        `yaml:"sequence,omitempty"`
	Name          string            `yaml:"name,omitempty"`
	Globs         []string          `yaml:"globs,omitempty"`
	RetryOriginal bool              `yaml:"retry_original,omitempty"`
	Env           map[string]string `yaml:"env,omitempty"`
	Permanent     bool              `yaml:"permanent,omitempty"`
}

// LoadPatternFile reads one user pattern pack. Unknown YAML keys are
// rejected so a typo cannot silently disable a matcher. The returned
// patterns still pass through repository validation.
func LoadPatternFile(path string) ([]ErrorPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recovery: reading pattern pack: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file patternFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("recovery: parsing pattern pack %s: %w", path, err)
	}

	patterns := make([]ErrorPattern, 0, len(file.Patterns))
	for _, def := range file.Patterns {
		p, err := def.toPattern()
		if err != nil {
			return nil, fmt.Errorf("recovery: pattern pack %s: pattern %q: %w", path, def.ID, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// LoadPatternFiles loads every pack in order, concatenating their patterns.
func LoadPatternFiles(paths []string) ([]ErrorPattern, error) {
	var all []ErrorPattern
	for _, path := range paths {
		patterns, err := LoadPatternFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, patterns...)
	}
	return all, nil
}

func (d patternDef) toPattern() (ErrorPattern, error) {
	category, err := ParseCategory(d.Category)
	if err != nil {
		return ErrorPattern{}, err
	}
	severity, err := ParseSeverity(d.Severity)
	if err != nil {
		return ErrorPattern{}, err
	}

	matchers := make([]PatternMatcher, 0, len(d.Matchers))
	for i, m := range d.Matchers {
		matcher, err := m.toMatcher()
		if err != nil {
			return ErrorPattern{}, fmt.Errorf("matcher %d: %w", i+1, err)
		}
		matchers = append(matchers, matcher)
	}

	fix, err := d.Fix.toStrategy()
	if err != nil {
		return ErrorPattern{}, err
	}

	p := ErrorPattern{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Category:    category,
		Severity:    severity,
		Matchers:    matchers,
		Fix:         fix,
		SuccessRate: d.SuccessRate,
		Platforms:   d.Platforms,
		Managers:    d.Managers,
	}
	if d.Risk != "" {
		risk, err := ParseRiskLevel(d.Risk)
		if err != nil {
			return ErrorPattern{}, err
		}
		p.Risk = &risk
	}
	return p, nil
}

func (d matcherDef) toMatcher() (PatternMatcher, error) {
	switch d.Location {
	case "stdout":
		return MatchStdout(d.Regex, d.Captures...), nil
	case "stderr":
		return MatchStderr(d.Regex, d.Captures...), nil
	case "combined":
		return MatchCombined(d.Regex, d.Captures...), nil
	case "exit_code":
		if d.Regex != "" || len(d.Captures) != 0 {
			return PatternMatcher{}, fmt.Errorf("exit_code matcher takes no regex or captures")
		}
		return MatchExitCode(d.ExitCode), nil
	}
	return PatternMatcher{}, fmt.Errorf("unknown matcher location %q", d.Location)
}

func (d strategyDef) toStrategy() (FixStrategy, error) {
	kind, err := ParseStrategyKind(d.Kind)
	if err != nil {
		return FixStrategy{}, err
	}
	return FixStrategy{
		Kind:          kind,
		Argv:          d.Argv,
		Sequence:      d.Sequence,
		Name:          d.Name,
		Globs:         d.Globs,
		RetryOriginal: d.RetryOriginal,
		Env:           d.Env,
		Permanent:     d.Permanent,
	}, nil
}
