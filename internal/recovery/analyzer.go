package recovery

import (
	"sort"

	"go.uber.org/zap"

	"pkgmedic/internal/platform"
)

// Hint narrows which patterns apply to a failure event. Empty fields filter
// nothing.
type Hint struct {
	// Platform is a distribution identifier such as "ubuntu" or "arch". A
	// pattern declaring the platform's family also applies.
	Platform string `json:"platform,omitempty"`
	// Manager is a package-manager name such as "apt".
	Manager string `json:"manager,omitempty"`
}

// Analyzer evaluates repository patterns against captured command output.
type Analyzer struct {
	repo *Repository
	log  *zap.Logger
}

// NewAnalyzer builds an analyzer over repo. A nil logger disables logging.
func NewAnalyzer(repo *Repository, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{repo: repo, log: log}
}

// Analyze evaluates every applicable pattern against one failure and returns
// the matches ranked by confidence, ties keeping repository order. A zero
// exit status with empty stderr means nothing failed, so no analyses are
// produced no matter what stdout holds.
func (a *Analyzer) Analyze(stdout, stderr string, exitCode int, hint Hint) []ErrorAnalysis {
	if exitCode == 0 && stderr == "" {
		return nil
	}

	combined := stdout + "\n" + stderr
	var analyses []ErrorAnalysis
	for i := range a.repo.patterns {
		p := &a.repo.patterns[i]
		if !hintApplies(hint.Platform, p.Platforms, true) {
			continue
		}
		if !hintApplies(hint.Manager, p.Managers, false) {
			continue
		}
		extracted, ok := evalMatchers(p, stdout, stderr, combined, exitCode)
		if !ok {
			continue
		}
		analyses = append(analyses, ErrorAnalysis{
			Pattern:     p,
			Confidence:  clamp01(p.SuccessRate * p.Severity.Weight()),
			Extracted:   extracted,
			Suggestions: Suggest(p, extracted),
		})
	}

	// Stable sort keeps repository order for equal confidence.
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].Confidence > analyses[j].Confidence
	})

	a.log.Debug("analysis finished",
		zap.Int("exit_code", exitCode),
		zap.String("platform_hint", hint.Platform),
		zap.String("manager_hint", hint.Manager),
		zap.Int("patterns", a.repo.Len()),
		zap.Int("matches", len(analyses)))
	return analyses
}

// hintApplies implements the applicability filter: no hint or no restriction
// passes everything; otherwise the hint (expanded to its platform family
// when expand is set) must intersect the pattern's set.
func hintApplies(hint string, set []string, expand bool) bool {
	if hint == "" || len(set) == 0 {
		return true
	}
	accepted := []string{hint}
	if expand {
		accepted = platform.Expand(hint)
	}
	for _, want := range set {
		for _, have := range accepted {
			if want == have {
				return true
			}
		}
	}
	return false
}

// evalMatchers runs every matcher of p in order, merging captures. The first
// failing matcher stops evaluation: all matchers must succeed for the
// pattern to match.
func evalMatchers(p *ErrorPattern, stdout, stderr, combined string, exitCode int) (map[string]string, bool) {
	var extracted map[string]string
	for i := range p.Matchers {
		m := &p.Matchers[i]
		if m.Location == LocExitCode {
			if exitCode != m.ExitCode {
				return nil, false
			}
			continue
		}

		var text string
		switch m.Location {
		case LocStdout:
			text = stdout
		case LocStderr:
			text = stderr
		default:
			text = combined
		}

		match := m.re.FindStringSubmatch(text)
		if match == nil {
			return nil, false
		}
		for gi, name := range m.CaptureGroups {
			if name == "" {
				continue
			}
			idx := gi + 1
			if idx < len(match) && match[idx] != "" {
				if extracted == nil {
					extracted = make(map[string]string)
				}
				extracted[name] = match[idx]
			}
		}
	}
	return extracted, true
}
