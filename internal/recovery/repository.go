package recovery

import (
	"fmt"
	"regexp"
)

// Repository is the read-only pattern collection the analyzer consults.
// Order is stable: built-in groups first (common, debian, fedora, arch),
// then user packs in load order, insertion order within each set. The
// repository is rebuilt wholesale on process start and never mutated.
type Repository struct {
	patterns []ErrorPattern
}

// NewRepository validates and compiles the built-in catalog plus any extra
// pattern sets. Validation is all-or-nothing: one malformed pattern rejects
// the whole repository, so a process never runs with a partial rule set.
func NewRepository(extra ...[]ErrorPattern) (*Repository, error) {
	patterns := builtinPatterns()
	for _, set := range extra {
		patterns = append(patterns, set...)
	}

	seen := make(map[string]struct{}, len(patterns))
	for i := range patterns {
		p := &patterns[i]
		if err := compilePattern(p); err != nil {
			return nil, fmt.Errorf("recovery: pattern %q: %w", p.ID, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("recovery: duplicate pattern id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return &Repository{patterns: patterns}, nil
}

// Patterns returns every pattern in stable repository order. Callers must
// not modify the returned slice.
func (r *Repository) Patterns() []ErrorPattern {
	return r.patterns
}

// Len reports how many patterns the repository holds.
func (r *Repository) Len() int {
	return len(r.patterns)
}

// compilePattern enforces the load-time contract: a non-empty matcher list,
// an in-range success rate, and regexes that compile with enough capture
// groups for their names.
func compilePattern(p *ErrorPattern) error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	if len(p.Matchers) == 0 {
		return fmt.Errorf("no matchers: a pattern without matchers would match everything")
	}
	if p.SuccessRate < 0 || p.SuccessRate > 1 {
		return fmt.Errorf("success rate %v out of range [0,1]", p.SuccessRate)
	}

	for i := range p.Matchers {
		m := &p.Matchers[i]
		if m.Location == LocExitCode {
			if m.Expr != "" {
				return fmt.Errorf("matcher %d: exit-code matchers take no regex", i)
			}
			if len(m.CaptureGroups) > 0 {
				return fmt.Errorf("matcher %d: exit-code matchers contribute no captures", i)
			}
			continue
		}
		if m.Expr == "" {
			return fmt.Errorf("matcher %d: empty regex", i)
		}
		re, err := regexp.Compile(m.Expr)
		if err != nil {
			return fmt.Errorf("matcher %d: %w", i, err)
		}
		if len(m.CaptureGroups) > re.NumSubexp() {
			return fmt.Errorf("matcher %d: %d capture names for %d groups",
				i, len(m.CaptureGroups), re.NumSubexp())
		}
		m.re = re
	}
	return nil
}
