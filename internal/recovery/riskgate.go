package recovery

import "fmt"

// Mode selects how much human confirmation remediation may request.
type Mode int

const (
	// ModeAuto applies fixes without prompting, restricted to low risk.
	ModeAuto Mode = iota
	// ModeInteractive escalates confirmation ceremony with risk.
	ModeInteractive
	// ModeDryRun describes fixes and executes nothing.
	ModeDryRun
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeInteractive:
		return "interactive"
	case ModeDryRun:
		return "dry-run"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Action is the gate's verdict for one suggestion.
type Action int

const (
	// Deny blocks execution entirely.
	Deny Action = iota
	// AllowSilently executes without asking.
	AllowSilently
	// RequireConfirm executes only after the user confirms.
	RequireConfirm
)

// ConfirmStrength selects the confirmation ceremony.
type ConfirmStrength int

const (
	ConfirmNone ConfirmStrength = iota
	// ConfirmSimple is a yes/no prompt.
	ConfirmSimple
	// ConfirmStrong demands the literal confirmation token.
	ConfirmStrong
)

// StrongConfirmToken is the exact, case-sensitive text a strong confirmation
// must read. A lowercase "yes" does not pass.
const StrongConfirmToken = "YES"

// Decision is the risk gate's outcome. Warn asks the caller to print an
// explicit risk warning before prompting.
type Decision struct {
	Action   Action
	Strength ConfirmStrength
	Warn     bool
}

// Decide applies the confirmation policy for one suggestion. The table is
// fixed:
//
//	            Safe            Low              Medium                  High
//	DryRun      deny            deny             deny                    deny
//	Auto        allow           allow            deny                    deny
//	Interactive allow           confirm          warn+confirm            strong confirm
//
// Auto mode never executes anything above Low risk, regardless of
// configuration.
func Decide(risk RiskLevel, mode Mode) Decision {
	switch mode {
	case ModeDryRun:
		return Decision{Action: Deny}
	case ModeAuto:
		if risk <= RiskLow {
			return Decision{Action: AllowSilently}
		}
		return Decision{Action: Deny}
	case ModeInteractive:
		switch risk {
		case RiskSafe:
			return Decision{Action: AllowSilently}
		case RiskLow:
			return Decision{Action: RequireConfirm, Strength: ConfirmSimple}
		case RiskMedium:
			return Decision{Action: RequireConfirm, Strength: ConfirmSimple, Warn: true}
		default:
			return Decision{Action: RequireConfirm, Strength: ConfirmStrong}
		}
	}
	// Unknown modes execute nothing.
	return Decision{Action: Deny}
}
