package recovery

// Suggest turns a matched pattern into its ranked remediation offers: the
// pattern's own fix first, then generic fallbacks for the failure category.
// The fallbacks exist so the operator still has an option when the specific
// fix fails; their risk and success values are chosen per fallback, not
// derived.
func Suggest(p *ErrorPattern, extracted map[string]string) []FixSuggestion {
	primary := FixSuggestion{
		Description:      p.Name + ": " + p.Fix.Render(),
		Strategy:         p.Fix,
		EstimatedSuccess: p.SuccessRate,
		RequiresSudo:     p.Category.RequiresSudo(),
		Risk:             deriveRisk(p),
	}

	suggestions := []FixSuggestion{primary}
	for _, fb := range categoryFallbacks(p.Category) {
		if equalStrategy(fb.Strategy, primary.Strategy) {
			continue
		}
		suggestions = append(suggestions, fb)
	}
	return suggestions
}

// deriveRisk maps the fix variant to a risk level, honoring a pattern's
// explicit override.
func deriveRisk(p *ErrorPattern) RiskLevel {
	if p.Risk != nil {
		return *p.Risk
	}
	return variantRisk(p.Fix.Kind)
}

// variantRisk is the default variant-to-risk mapping: overwriting files is
// the most invasive, cleanup-then-retry can churn state, single commands and
// reinstalls are mild, everything else is safe.
func variantRisk(k StrategyKind) RiskLevel {
	switch k {
	case StrategyForceOverwrite:
		return RiskHigh
	case StrategyCleanRetry:
		return RiskMedium
	case StrategyRebuild, StrategyCommand:
		return RiskLow
	default:
		return RiskSafe
	}
}

// categoryFallbacks returns the generic remediations offered after the
// primary fix for a failure category. Not every category has one.
func categoryFallbacks(c Category) []FixSuggestion {
	switch c {
	case CategoryDependency:
		return []FixSuggestion{{
			Description:      "Update all packages, then retry the failed operation",
			Strategy:         BuiltIn("update_all"),
			EstimatedSuccess: 0.5,
			RequiresSudo:     true,
			Risk:             RiskMedium,
		}}
	case CategoryPermission:
		return []FixSuggestion{{
			Description:      "Re-run the failed command with elevated privileges",
			Strategy:         Command("sudo", "sh", "-c", "{command}"),
			EstimatedSuccess: 0.8,
			RequiresSudo:     true,
			Risk:             RiskLow,
		}}
	case CategoryLock:
		return []FixSuggestion{{
			Description:      "Force-clear stale package manager lock files",
			Strategy:         BuiltIn("clear_locks"),
			EstimatedSuccess: 0.85,
			RequiresSudo:     true,
			Risk:             RiskLow,
		}}
	case CategoryDiskSpace:
		return []FixSuggestion{{
			Description:      "Purge package caches to reclaim disk space",
			Strategy:         BuiltIn("purge_cache"),
			EstimatedSuccess: 0.7,
			RequiresSudo:     true,
			Risk:             RiskLow,
		}}
	case CategoryNetwork:
		return []FixSuggestion{{
			Description:      "Refresh the package indexes",
			Strategy:         BuiltIn("refresh_indexes"),
			EstimatedSuccess: 0.5,
			RequiresSudo:     true,
			Risk:             RiskSafe,
		}}
	case CategorySignature, CategoryKeyring:
		return []FixSuggestion{{
			Description:      "Refresh the package signing keyring",
			Strategy:         BuiltIn("refresh_keyring"),
			EstimatedSuccess: 0.65,
			RequiresSudo:     true,
			Risk:             RiskLow,
		}}
	}
	return nil
}
