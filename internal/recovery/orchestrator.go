package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pkgmedic/internal/sysexec"
)

// Prompter asks the user for confirmation. Implementations must report an
// error when no terminal is attached; the orchestrator treats any prompt
// error as a decline.
type Prompter interface {
	// Confirm asks a yes/no question, defaulting to no.
	Confirm(prompt string) (bool, error)
	// ConfirmStrong accepts only the literal, case-sensitive token.
	ConfirmStrong(prompt, token string) (bool, error)
}

// FailureEvent is one observed command failure.
type FailureEvent struct {
	ID      uuid.UUID `json:"id"`
	Command string    `json:"command"`
	// Argv is the exact vector to re-run the command with. When empty the
	// command text is retried through the shell.
	Argv      []string  `json:"argv,omitempty"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFailureEvent builds an event from a finished command run.
func NewFailureEvent(command string, argv []string, res *sysexec.Result) FailureEvent {
	return FailureEvent{
		ID:        uuid.New(),
		Command:   command,
		Argv:      argv,
		ExitCode:  res.ExitCode,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		Timestamp: time.Now(),
	}
}

// Outcome summarizes one pass through the engine.
type Outcome struct {
	// Analyses holds every matched pattern, highest confidence first.
	Analyses []ErrorAnalysis `json:"analyses" yaml:"analyses"`
	// Recovered reports whether a fix completed, clearing the record.
	Recovered bool `json:"recovered" yaml:"recovered"`
	// Applied is the suggestion that recovered the failure, if any.
	Applied *FixSuggestion `json:"applied,omitempty" yaml:"applied,omitempty"`
	// RetriedOriginal reports whether the failed command was re-run.
	RetriedOriginal bool `json:"retried_original" yaml:"retried_original"`
	// SkipReasons explains why no automatic fix was attempted.
	SkipReasons []string `json:"skip_reasons,omitempty" yaml:"skip_reasons,omitempty"`
	// Guidance carries follow-up instructions the engine will not apply
	// itself.
	Guidance []string `json:"guidance,omitempty" yaml:"guidance,omitempty"`
}

// AutoPolicy bounds unattended remediation. A fix is applied without asking
// only when every threshold passes and the budget has a token left.
type AutoPolicy struct {
	// MinConfidence is the lowest analysis confidence eligible for auto-fix.
	MinConfidence float64 `json:"min_confidence"`
	// MaxRisk is the highest suggestion risk eligible for auto-fix. The risk
	// gate still caps this at Low regardless of configuration.
	MaxRisk RiskLevel `json:"max_risk"`
	// MinSuccess is the lowest estimated success rate eligible for auto-fix.
	MinSuccess float64 `json:"min_success"`
	// AttemptsPerMinute is the auto-fix budget. Non-positive disables the
	// budget.
	AttemptsPerMinute int `json:"attempts_per_minute"`
}

// DefaultAutoPolicy returns the stock thresholds.
func DefaultAutoPolicy() AutoPolicy {
	return AutoPolicy{
		MinConfidence:     0.9,
		MaxRisk:           RiskLow,
		MinSuccess:        0.8,
		AttemptsPerMinute: 3,
	}
}

// OrchestratorConfig wires the orchestrator's collaborators. Every field has
// a usable default except Analyzer, which defaults to an empty repository
// and therefore never matches anything.
type OrchestratorConfig struct {
	Analyzer *Analyzer
	Interp   *Interpreter
	// Store persists the last failure. Nil disables persistence and makes
	// Replay report ErrNoRecord.
	Store *RecordStore
	// Runner re-runs the original command after retry-flagged fixes.
	Runner sysexec.Runner
	// Prompt confirms risky fixes. Nil declines everything that asks.
	Prompt  Prompter
	Notify  Notifier
	Metrics *Metrics
	Logger  *zap.Logger
	// Hint narrows pattern applicability to the detected platform.
	Hint Hint
	// AutoFix enables unattended remediation in HandleFailure.
	AutoFix bool
	// Auto overrides the default thresholds.
	Auto *AutoPolicy
}

// Orchestrator drives the failure-to-recovery flow: persist, analyze, gate,
// execute, report. One orchestrator serves one process.
type Orchestrator struct {
	analyzer *Analyzer
	interp   *Interpreter
	store    *RecordStore
	runner   sysexec.Runner
	prompt   Prompter
	notify   Notifier
	metrics  *Metrics
	log      *zap.Logger
	hint     Hint
	autoFix  bool
	policy   AutoPolicy
	budget   *rate.Limiter
}

// NewOrchestrator builds an orchestrator from cfg.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	if cfg == nil {
		cfg = &OrchestratorConfig{}
	}
	o := &Orchestrator{
		analyzer: cfg.Analyzer,
		interp:   cfg.Interp,
		store:    cfg.Store,
		runner:   cfg.Runner,
		prompt:   cfg.Prompt,
		notify:   cfg.Notify,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		hint:     cfg.Hint,
		autoFix:  cfg.AutoFix,
		policy:   DefaultAutoPolicy(),
	}
	if cfg.Auto != nil {
		o.policy = *cfg.Auto
	}
	if o.analyzer == nil {
		o.analyzer = NewAnalyzer(&Repository{}, nil)
	}
	if o.interp == nil {
		o.interp = NewInterpreter(nil)
	}
	if o.runner == nil {
		o.runner = sysexec.NewRunner(nil)
	}
	if o.notify == nil {
		o.notify = NopNotifier{}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	o.budget = newBudget(o.policy.AttemptsPerMinute)
	return o
}

func newBudget(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
}

// HandleFailure is the on-failure path: persist the failure, analyze it, and
// apply the top fix unattended when policy allows. It never prompts; manual
// follow-up goes through Replay.
func (o *Orchestrator) HandleFailure(ctx context.Context, ev FailureEvent) *Outcome {
	defer o.logCounters()
	o.metrics.FailureSeen()
	o.log.Info("handling command failure",
		zap.String("event", ev.ID.String()),
		zap.String("command", ev.Command),
		zap.Int("exit_code", ev.ExitCode))

	if o.store != nil {
		rec := &Record{
			Command:   ev.Command,
			ExitCode:  ev.ExitCode,
			Stdout:    ev.Stdout,
			Stderr:    ev.Stderr,
			Timestamp: ev.Timestamp,
		}
		// A failed save must not block analysis; the record only feeds
		// later replays.
		if err := o.store.Save(rec); err != nil {
			o.log.Warn("could not persist failure record", zap.Error(err))
		}
	}

	analyses := o.analyzer.Analyze(ev.Stdout, ev.Stderr, ev.ExitCode, o.hint)
	o.metrics.PatternsMatched(len(analyses))
	out := &Outcome{Analyses: analyses}
	if len(analyses) == 0 {
		o.notify.Reportf("no known failure pattern matched")
		return out
	}

	top := &analyses[0]
	primary := top.Suggestions[0]

	reasons := o.autoSkipReasons(top, primary)
	if len(reasons) == 0 && !o.budget.Allow() {
		o.metrics.BudgetExhaust()
		reasons = append(reasons, "auto-fix budget exhausted")
	}
	if len(reasons) > 0 {
		o.metrics.AutoSkip()
		out.SkipReasons = reasons
		o.notify.Reportf("not fixing automatically: %s", strings.Join(reasons, "; "))
		return out
	}

	o.notify.Reportf("applying fix automatically: %s", primary.Description)
	if o.applySuggestion(ctx, &ev, top, primary, out) {
		o.finishRecovered(out, primary)
	} else {
		o.notify.Reportf("automatic fix did not recover the failure")
	}
	return out
}

// autoSkipReasons collects every policy threshold the top suggestion misses.
func (o *Orchestrator) autoSkipReasons(top *ErrorAnalysis, primary FixSuggestion) []string {
	var reasons []string
	if !o.autoFix {
		return append(reasons, "automatic remediation is disabled")
	}
	if top.Confidence < o.policy.MinConfidence {
		reasons = append(reasons, fmt.Sprintf("confidence %.2f below %.2f", top.Confidence, o.policy.MinConfidence))
	}
	if primary.Risk > o.policy.MaxRisk {
		reasons = append(reasons, fmt.Sprintf("risk %s above %s", primary.Risk, o.policy.MaxRisk))
	}
	if primary.EstimatedSuccess < o.policy.MinSuccess {
		reasons = append(reasons, fmt.Sprintf("estimated success %.2f below %.2f", primary.EstimatedSuccess, o.policy.MinSuccess))
	}
	// The gate is consulted even after the thresholds pass: a configured
	// MaxRisk above Low never loosens the Auto ceiling.
	if len(reasons) == 0 {
		if d := Decide(primary.Risk, ModeAuto); d.Action != AllowSilently {
			reasons = append(reasons, fmt.Sprintf("risk %s requires confirmation", primary.Risk))
		}
	}
	return reasons
}

// Replay is the on-demand path: reload the persisted failure, re-analyze it,
// and walk the top analysis' suggestions through the risk gate. In dry-run
// mode every suggestion is described and nothing executes.
func (o *Orchestrator) Replay(ctx context.Context, mode Mode) (*Outcome, error) {
	defer o.logCounters()
	if o.store == nil {
		return nil, ErrNoRecord
	}
	rec, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	o.log.Info("replaying recorded failure",
		zap.String("command", rec.Command),
		zap.Int("exit_code", rec.ExitCode),
		zap.Time("recorded_at", rec.Timestamp),
		zap.String("mode", mode.String()))

	analyses := o.analyzer.Analyze(rec.Stdout, rec.Stderr, rec.ExitCode, o.hint)
	o.metrics.PatternsMatched(len(analyses))
	out := &Outcome{Analyses: analyses}
	if len(analyses) == 0 {
		o.notify.Reportf("no known failure pattern matched")
		return out, nil
	}

	ev := FailureEvent{
		ID:        uuid.New(),
		Command:   rec.Command,
		ExitCode:  rec.ExitCode,
		Stdout:    rec.Stdout,
		Stderr:    rec.Stderr,
		Timestamp: rec.Timestamp,
	}

	top := &analyses[0]
	for _, sug := range top.Suggestions {
		switch d := Decide(sug.Risk, mode); d.Action {
		case Deny:
			if mode == ModeDryRun {
				o.notify.Reportf("would offer: %s (risk %s)", sug.Description, sug.Risk)
			} else {
				o.notify.Reportf("denied at risk %s: %s", sug.Risk, sug.Description)
			}
			continue
		case RequireConfirm:
			if !o.confirm(d, sug) {
				o.metrics.FixDeclined()
				o.notify.Reportf("skipped: %s", sug.Description)
				continue
			}
		case AllowSilently:
		}
		if o.applySuggestion(ctx, &ev, top, sug, out) {
			o.finishRecovered(out, sug)
			return out, nil
		}
	}
	if mode != ModeDryRun {
		o.notify.Reportf("no suggestion recovered the failure; the record is kept for another try")
	}
	return out, nil
}

// confirm runs the decision's ceremony. Any prompt failure, including a
// missing terminal, counts as a decline.
func (o *Orchestrator) confirm(d Decision, sug FixSuggestion) bool {
	if o.prompt == nil {
		o.notify.Reportf("no terminal to confirm %q", sug.Description)
		return false
	}
	if d.Warn {
		o.notify.Reportf("warning: this is a %s-risk operation", sug.Risk)
	}
	prompt := fmt.Sprintf("Apply fix: %s", sug.Description)
	if sug.RequiresSudo {
		prompt += " (needs root)"
	}
	var ok bool
	var err error
	if d.Strength == ConfirmStrong {
		ok, err = o.prompt.ConfirmStrong(prompt, StrongConfirmToken)
	} else {
		ok, err = o.prompt.Confirm(prompt)
	}
	if err != nil {
		o.log.Debug("confirmation unavailable", zap.Error(err))
		return false
	}
	return ok
}

// applySuggestion executes one suggestion and reports whether the failure is
// recovered, re-running the original command when the strategy asks for it.
func (o *Orchestrator) applySuggestion(ctx context.Context, ev *FailureEvent, top *ErrorAnalysis, sug FixSuggestion, out *Outcome) bool {
	o.metrics.FixAttempted()
	res := o.interp.Execute(ctx, sug.Strategy, o.capturedFor(ev, top))
	out.Guidance = append(out.Guidance, res.Guidance...)
	if res.Unimplemented || !res.Success {
		o.metrics.FixFailed()
		if res.Reason != "" && !res.Unimplemented {
			o.notify.Reportf("fix did not complete: %s", res.Reason)
		}
		return false
	}
	if !res.RetryOriginal {
		o.metrics.FixSucceeded()
		return true
	}

	out.RetriedOriginal = true
	o.metrics.OriginalRetried()
	argv := ev.Argv
	if len(argv) == 0 {
		argv = sysexec.ShellArgv(ev.Command)
	}
	o.notify.Stepf("retrying: %s", ev.Command)
	rr, err := o.runner.Run(ctx, argv)
	if err != nil {
		o.metrics.FixFailed()
		o.notify.Reportf("could not retry the original command: %v", err)
		return false
	}
	if !rr.Success() {
		o.metrics.FixFailed()
		o.notify.Reportf("original command still fails with status %d", rr.ExitCode)
		return false
	}
	o.metrics.FixSucceeded()
	o.notify.Reportf("original command succeeded after cleanup")
	return true
}

// capturedFor seeds the substitution context with the failure's own facts,
// then overlays the pattern's captures, which win on name collisions.
func (o *Orchestrator) capturedFor(ev *FailureEvent, top *ErrorAnalysis) map[string]string {
	captured := map[string]string{
		"command":  ev.Command,
		"manager":  o.hint.Manager,
		"platform": o.hint.Platform,
	}
	for k, v := range top.Extracted {
		captured[k] = v
	}
	return captured
}

func (o *Orchestrator) logCounters() {
	snap := o.metrics.Snapshot()
	o.log.Debug("engine counters",
		zap.Int("failures_seen", snap.FailuresSeen),
		zap.Int("patterns_matched", snap.PatternsMatched),
		zap.Int("fixes_attempted", snap.FixesAttempted),
		zap.Int("fixes_succeeded", snap.FixesSucceeded),
		zap.Int("fixes_declined", snap.FixesDeclined),
		zap.Int("auto_skipped", snap.AutoSkipped))
}

func (o *Orchestrator) finishRecovered(out *Outcome, sug FixSuggestion) {
	out.Recovered = true
	out.Applied = &sug
	if o.store != nil {
		if err := o.store.Clear(); err != nil {
			o.log.Warn("could not clear failure record", zap.Error(err))
		}
	}
	o.notify.Reportf("recovered: %s", sug.Description)
}
