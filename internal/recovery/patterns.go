package recovery

// builtinPatterns assembles the built-in catalog in stable order: rules that
// apply everywhere first, then the distribution-specific groups. Analysis
// results keep this order for equal confidence scores, so the broadest rules
// win ties against later, narrower ones only when registered first.
func builtinPatterns() []ErrorPattern {
	var out []ErrorPattern
	out = append(out, commonPatterns()...)
	out = append(out, debianPatterns()...)
	out = append(out, fedoraPatterns()...)
	out = append(out, archPatterns()...)
	return out
}

func riskPtr(r RiskLevel) *RiskLevel { return &r }
