package recovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPattern(id string) ErrorPattern {
	return ErrorPattern{
		ID:          id,
		Name:        "Test pattern",
		Description: "For validation tests.",
		Category:    CategoryNetwork,
		Severity:    SeverityMedium,
		Matchers:    []PatternMatcher{MatchStderr(`boom`)},
		Fix:         Command("true"),
		SuccessRate: 0.5,
	}
}

func mustRepo(t *testing.T, extra ...[]ErrorPattern) *Repository {
	t.Helper()
	repo, err := NewRepository(extra...)
	require.NoError(t, err)
	return repo
}

func TestNewRepositoryBuiltinCatalog(t *testing.T) {
	repo := mustRepo(t)
	assert.GreaterOrEqual(t, repo.Len(), 24)

	seen := make(map[string]bool, repo.Len())
	for _, p := range repo.Patterns() {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Matchers, "pattern %s", p.ID)
		assert.GreaterOrEqual(t, p.SuccessRate, 0.0, "pattern %s", p.ID)
		assert.LessOrEqual(t, p.SuccessRate, 1.0, "pattern %s", p.ID)
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestNewRepositoryGroupOrder(t *testing.T) {
	repo := mustRepo(t)

	var groups []string
	for _, p := range repo.Patterns() {
		group, _, _ := strings.Cut(p.ID, "/")
		if len(groups) == 0 || groups[len(groups)-1] != group {
			groups = append(groups, group)
		}
	}
	assert.Equal(t, []string{"common", "debian", "fedora", "arch"}, groups)
}

func TestNewRepositoryAppendsUserPatterns(t *testing.T) {
	base := mustRepo(t)
	repo := mustRepo(t, []ErrorPattern{validPattern("user/custom-rule")})

	require.Equal(t, base.Len()+1, repo.Len())
	assert.Equal(t, "user/custom-rule", repo.Patterns()[repo.Len()-1].ID)
}

func TestNewRepositoryValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *ErrorPattern)
		wantErr string
	}{
		{
			name:    "missing id",
			mutate:  func(p *ErrorPattern) { p.ID = "" },
			wantErr: "missing id",
		},
		{
			name:    "no matchers",
			mutate:  func(p *ErrorPattern) { p.Matchers = nil },
			wantErr: "no matchers",
		},
		{
			name:    "success rate above one",
			mutate:  func(p *ErrorPattern) { p.SuccessRate = 1.5 },
			wantErr: "out of range",
		},
		{
			name:    "success rate negative",
			mutate:  func(p *ErrorPattern) { p.SuccessRate = -0.1 },
			wantErr: "out of range",
		},
		{
			name: "regex does not compile",
			mutate: func(p *ErrorPattern) {
				p.Matchers = []PatternMatcher{MatchStderr(`(unclosed`)}
			},
			wantErr: "error parsing regexp",
		},
		{
			name: "empty regex",
			mutate: func(p *ErrorPattern) {
				p.Matchers = []PatternMatcher{MatchStderr(``)}
			},
			wantErr: "empty regex",
		},
		{
			name: "more capture names than groups",
			mutate: func(p *ErrorPattern) {
				p.Matchers = []PatternMatcher{MatchStderr(`no groups`, "name")}
			},
			wantErr: "capture names",
		},
		{
			name: "exit matcher with regex",
			mutate: func(p *ErrorPattern) {
				p.Matchers = []PatternMatcher{{Location: LocExitCode, Expr: `x`}}
			},
			wantErr: "take no regex",
		},
		{
			name: "exit matcher with captures",
			mutate: func(p *ErrorPattern) {
				p.Matchers = []PatternMatcher{{Location: LocExitCode, CaptureGroups: []string{"x"}}}
			},
			wantErr: "contribute no captures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPattern("user/broken")
			tt.mutate(&p)

			_, err := NewRepository([]ErrorPattern{p})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if p.ID != "" {
				assert.Contains(t, err.Error(), p.ID)
			}
		})
	}
}

func TestNewRepositoryRejectsDuplicateID(t *testing.T) {
	_, err := NewRepository([]ErrorPattern{validPattern("common/no-space")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate pattern id")
	assert.Contains(t, err.Error(), "common/no-space")
}

func TestNewRepositoryRejectsWholesale(t *testing.T) {
	// One bad pattern poisons the load even when others are fine.
	good := validPattern("user/good")
	bad := validPattern("user/bad")
	bad.Matchers = nil

	_, err := NewRepository([]ErrorPattern{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user/bad")
}
