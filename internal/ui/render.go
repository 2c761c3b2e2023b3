package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"pkgmedic/internal/recovery"
)

// Renderer writes the human-readable table output. JSON and YAML output
// never passes through here; those are plain encoders on the cli side.
type Renderer struct {
	w       io.Writer
	verbose bool
}

// NewRenderer builds a renderer targeting w. Verbose adds the concrete
// commands behind each suggestion.
func NewRenderer(w io.Writer, verbose bool) *Renderer {
	return &Renderer{w: w, verbose: verbose}
}

// Record summarizes the persisted failure a diagnose run starts from.
func (r *Renderer) Record(rec *recovery.Record) {
	fmt.Fprintf(r.w, "📋 Last failure: %s (exit %d, %s)\n",
		bold.Sprint(rec.Command), rec.ExitCode, rec.Timestamp.Format(time.RFC1123))
	if line := lastLine(rec.Stderr); line != "" {
		fmt.Fprintf(r.w, "   %s\n", faint.Sprint(line))
	}
	fmt.Fprintln(r.w)
}

// Analyses writes the matched patterns with their suggested fixes, highest
// confidence first.
func (r *Renderer) Analyses(analyses []recovery.ErrorAnalysis) {
	if len(analyses) == 0 {
		fmt.Fprintln(r.w, "🔍 No known failure pattern matched")
		return
	}
	header := fmt.Sprintf("🔍 Failure Analysis - %d pattern(s) matched", len(analyses))
	fmt.Fprintln(r.w, header)
	fmt.Fprintln(r.w, strings.Repeat("=", len([]rune(header))))

	for i, a := range analyses {
		p := a.Pattern
		fmt.Fprintf(r.w, "\n%d. %s  %s  confidence %s\n",
			i+1, bold.Sprint(p.Name),
			faint.Sprintf("[%s, %s severity]", p.Category, severityColor(p.Severity).Sprint(p.Severity)),
			percent(a.Confidence))
		if p.Description != "" {
			fmt.Fprintf(r.w, "   %s\n", p.Description)
		}
		if len(a.Extracted) > 0 {
			fmt.Fprintf(r.w, "   captured: %s\n", formatCaptures(a.Extracted))
		}
		fmt.Fprintln(r.w, "   Suggested fixes:")
		for j, sug := range a.Suggestions {
			fmt.Fprintf(r.w, "     %d) %s  %s\n", j+1, sug.Description, suggestionTag(sug))
			if r.verbose {
				fmt.Fprintf(r.w, "        %s\n", faint.Sprint(sug.Strategy.Render()))
			}
		}
		if r.verbose {
			fmt.Fprintf(r.w, "   %s\n", faint.Sprintf("pattern: %s", p.ID))
		}
	}
}

// Outcome writes the closing banner for one engine pass.
func (r *Renderer) Outcome(out *recovery.Outcome) {
	fmt.Fprintln(r.w)
	switch {
	case out.Recovered:
		msg := "Recovered"
		if out.Applied != nil {
			msg = fmt.Sprintf("Recovered: %s", out.Applied.Description)
		}
		fmt.Fprintf(r.w, "✅ %s\n", green.Sprint(msg))
		if out.RetriedOriginal {
			fmt.Fprintln(r.w, "   The original command was re-run and succeeded.")
		}
	case len(out.Analyses) == 0:
		fmt.Fprintln(r.w, "❌ Nothing to fix automatically; the output matched no known pattern.")
	default:
		fmt.Fprintf(r.w, "❌ %s\n", red.Sprint("Not recovered"))
		for _, reason := range out.SkipReasons {
			fmt.Fprintf(r.w, "  • %s\n", reason)
		}
	}
	for _, g := range out.Guidance {
		fmt.Fprintf(r.w, "💡 %s\n", g)
	}
}

// Patterns lists the loaded pattern catalog.
func (r *Renderer) Patterns(patterns []recovery.ErrorPattern) {
	fmt.Fprintf(r.w, "📦 Pattern catalog - %d entries\n\n", len(patterns))
	tw := tabwriter.NewWriter(r.w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tSUCCESS\tPLATFORMS\tMANAGERS")
	for i := range patterns {
		p := &patterns[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
			p.ID, p.Category, p.Severity, p.SuccessRate*100,
			anyOr(p.Platforms), anyOr(p.Managers))
	}
	tw.Flush()
}

func suggestionTag(s recovery.FixSuggestion) string {
	parts := []string{
		fmt.Sprintf("risk %s", riskColor(s.Risk).Sprint(s.Risk)),
		fmt.Sprintf("~%s success", percent(s.EstimatedSuccess)),
	}
	if s.RequiresSudo {
		parts = append(parts, "needs root")
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatCaptures(extracted map[string]string) string {
	keys := make([]string, 0, len(extracted))
	for k := range extracted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, extracted[k]))
	}
	return strings.Join(pairs, "  ")
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func anyOr(set []string) string {
	if len(set) == 0 {
		return "any"
	}
	return strings.Join(set, ",")
}

func severityColor(s recovery.Severity) *color.Color {
	switch s {
	case recovery.SeverityCritical:
		return red
	case recovery.SeverityHigh:
		return yellow
	default:
		return faint
	}
}

func riskColor(r recovery.RiskLevel) *color.Color {
	switch r {
	case recovery.RiskHigh:
		return red
	case recovery.RiskMedium:
		return yellow
	case recovery.RiskLow:
		return cyan
	default:
		return green
	}
}

// lastLine returns the final non-blank line of s, trimmed.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
