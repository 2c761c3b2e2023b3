package recovery

import (
	"fmt"
	"regexp"
	"strings"
)

// Category classifies the root cause a pattern recognizes.
type Category int

const (
	CategoryDependency Category = iota
	CategoryPermission
	CategoryNetwork
	CategoryDiskSpace
	CategoryConfiguration
	CategoryPackage
	CategoryRepository
	CategoryBuild
	CategorySignature
	CategoryLock
	CategoryLibrary
	CategoryKeyring
	CategoryDatabase
	CategoryEnvironment
)

var categoryNames = map[Category]string{
	CategoryDependency:    "dependency",
	CategoryPermission:    "permission",
	CategoryNetwork:       "network",
	CategoryDiskSpace:     "disk-space",
	CategoryConfiguration: "configuration",
	CategoryPackage:       "package",
	CategoryRepository:    "repository",
	CategoryBuild:         "build",
	CategorySignature:     "signature",
	CategoryLock:          "lock",
	CategoryLibrary:       "library",
	CategoryKeyring:       "keyring",
	CategoryDatabase:      "database",
	CategoryEnvironment:   "environment",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// MarshalJSON renders the category name instead of its ordinal.
func (c Category) MarshalJSON() ([]byte, error) { return marshalName(c.String()) }

// MarshalYAML renders the category name instead of its ordinal.
func (c Category) MarshalYAML() (interface{}, error) { return c.String(), nil }

// ParseCategory resolves a category name from a pattern definition.
func ParseCategory(s string) (Category, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if name == needle {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// RequiresSudo reports whether fixes in this category conventionally need
// elevated privileges.
func (c Category) RequiresSudo() bool {
	switch c {
	case CategoryPermission, CategoryPackage, CategoryRepository, CategoryLock:
		return true
	}
	return false
}

// Severity ranks how disruptive a recognized failure is. The ordering is
// total: Critical > High > Medium > Low.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalJSON renders the severity name instead of its ordinal.
func (s Severity) MarshalJSON() ([]byte, error) { return marshalName(s.String()) }

// MarshalYAML renders the severity name instead of its ordinal.
func (s Severity) MarshalYAML() (interface{}, error) { return s.String(), nil }

// ParseSeverity resolves a severity name from a pattern definition.
func ParseSeverity(v string) (Severity, error) {
	needle := strings.ToLower(strings.TrimSpace(v))
	for s, name := range severityNames {
		if name == needle {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", v)
}

// Weight scales a pattern's success rate into a confidence score. Weights
// strictly decrease as severity decreases.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.95
	case SeverityMedium:
		return 0.9
	default:
		return 0.85
	}
}

// RiskLevel orders remediation strategies by potential for harm:
// Safe < Low < Medium < High. The ordering drives the confirmation policy
// and is never used arithmetically.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

var riskNames = map[RiskLevel]string{
	RiskSafe:   "safe",
	RiskLow:    "low",
	RiskMedium: "medium",
	RiskHigh:   "high",
}

func (r RiskLevel) String() string {
	if name, ok := riskNames[r]; ok {
		return name
	}
	return fmt.Sprintf("risk(%d)", int(r))
}

// MarshalJSON renders the risk name instead of its ordinal.
func (r RiskLevel) MarshalJSON() ([]byte, error) { return marshalName(r.String()) }

// MarshalYAML renders the risk name instead of its ordinal.
func (r RiskLevel) MarshalYAML() (interface{}, error) { return r.String(), nil }

// ParseRiskLevel resolves a risk name from configuration or a pattern
// definition.
func ParseRiskLevel(v string) (RiskLevel, error) {
	needle := strings.ToLower(strings.TrimSpace(v))
	for r, name := range riskNames {
		if name == needle {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown risk level %q", v)
}

// MatchLocation selects which part of a failure event a matcher inspects.
type MatchLocation int

const (
	LocStdout MatchLocation = iota
	LocStderr
	LocCombined
	LocExitCode
)

// MarshalJSON renders the location name instead of its ordinal.
func (l MatchLocation) MarshalJSON() ([]byte, error) { return marshalName(l.String()) }

// MarshalYAML renders the location name instead of its ordinal.
func (l MatchLocation) MarshalYAML() (interface{}, error) { return l.String(), nil }

func (l MatchLocation) String() string {
	switch l {
	case LocStdout:
		return "stdout"
	case LocStderr:
		return "stderr"
	case LocCombined:
		return "combined"
	case LocExitCode:
		return "exit_code"
	}
	return fmt.Sprintf("location(%d)", int(l))
}

// PatternMatcher is one recognition test. Regex matchers run against the text
// selected by Location; exit-code matchers compare numerically and contribute
// no captures. The regex compiles when the repository loads, so a malformed
// expression can never surface during analysis.
type PatternMatcher struct {
	Location MatchLocation `json:"location" yaml:"location"`
	// Expr is the regex source. Empty for exit-code matchers.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
	// ExitCode is the required exit status for LocExitCode matchers.
	ExitCode int `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	// CaptureGroups names regex capture groups positionally: index i names
	// group i+1. An empty name drops the group; a group that did not
	// participate in the match leaves its name unbound.
	CaptureGroups []string `json:"capture_groups,omitempty" yaml:"capture_groups,omitempty"`

	re *regexp.Regexp
}

// MatchStdout builds a regex matcher over captured standard output.
func MatchStdout(expr string, captures ...string) PatternMatcher {
	return PatternMatcher{Location: LocStdout, Expr: expr, CaptureGroups: captures}
}

// MatchStderr builds a regex matcher over captured standard error.
func MatchStderr(expr string, captures ...string) PatternMatcher {
	return PatternMatcher{Location: LocStderr, Expr: expr, CaptureGroups: captures}
}

// MatchCombined builds a regex matcher over stdout and stderr joined with a
// newline.
func MatchCombined(expr string, captures ...string) PatternMatcher {
	return PatternMatcher{Location: LocCombined, Expr: expr, CaptureGroups: captures}
}

// MatchExitCode builds a matcher requiring an exact exit status.
func MatchExitCode(code int) PatternMatcher {
	return PatternMatcher{Location: LocExitCode, ExitCode: code}
}

// ErrorPattern is one declarative recognition rule with its primary fix.
// Patterns are immutable once the repository has accepted them.
type ErrorPattern struct {
	// ID uniquely names the pattern, conventionally group/slug.
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Category Category `json:"category" yaml:"category"`
	Severity Severity `json:"severity" yaml:"severity"`

	// Matchers must all succeed for the pattern to match. Never empty.
	Matchers []PatternMatcher `json:"matchers" yaml:"matchers"`

	// Fix is the primary remediation strategy.
	Fix FixStrategy `json:"fix" yaml:"fix"`

	// SuccessRate estimates how often Fix resolves this failure, in [0,1].
	SuccessRate float64 `json:"success_rate" yaml:"success_rate"`

	// Platforms and Managers restrict where the pattern applies. An empty
	// set means "any".
	Platforms []string `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	Managers  []string `json:"managers,omitempty" yaml:"managers,omitempty"`

	// Risk, when set, overrides the risk level derived from the fix variant
	// for the primary suggestion.
	Risk *RiskLevel `json:"risk,omitempty" yaml:"risk,omitempty"`
}

// ErrorAnalysis is the outcome of one pattern matching one failure event.
type ErrorAnalysis struct {
	Pattern *ErrorPattern `json:"pattern" yaml:"pattern"`
	// Confidence scores how likely the pattern explains the failure, in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Extracted maps capture-group names to the matched text.
	Extracted map[string]string `json:"extracted,omitempty" yaml:"extracted,omitempty"`
	// Suggestions lists remediations, the pattern's primary fix first.
	Suggestions []FixSuggestion `json:"suggestions" yaml:"suggestions"`
}

// FixSuggestion is one remediation offer with its safety metadata.
type FixSuggestion struct {
	Description      string      `json:"description" yaml:"description"`
	Strategy         FixStrategy `json:"strategy" yaml:"strategy"`
	EstimatedSuccess float64     `json:"estimated_success" yaml:"estimated_success"`
	RequiresSudo     bool        `json:"requires_sudo" yaml:"requires_sudo"`
	Risk             RiskLevel   `json:"risk" yaml:"risk"`
}

func marshalName(name string) ([]byte, error) {
	return []byte(`"` + name + `"`), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
