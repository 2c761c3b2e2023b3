package recovery

// archPatterns recognizes pacman failures on Arch-family systems.
func archPatterns() []ErrorPattern {
	return []ErrorPattern{
		{
			ID:          "arch/pacman-db-locked",
			Name:        "pacman database locked",
			Description: "A stale db.lck file is blocking pacman after an interrupted run.",
			Category:    CategoryLock,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)could not lock database: File exists`),
			},
			Fix:         Command("rm", "-f", "/var/lib/pacman/db.lck"),
			SuccessRate: 0.9,
			Platforms:   []string{"arch"},
			Managers:    []string{"pacman"},
			// Deleting a stale lock file cannot break anything.
			Risk: riskPtr(RiskSafe),
		},
		{
			ID:          "arch/conflicting-files",
			Name:        "Conflicting files on upgrade",
			Description: "A package wants to install files that already exist on disk.",
			Category:    CategoryPackage,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)failed to commit transaction \(conflicting files\)`),
				MatchStderr(`([A-Za-z0-9._+-]+): (/[^\s]+) exists in filesystem`, "package", "path"),
			},
			Fix:         ForceOverwrite("{path}"),
			SuccessRate: 0.7,
			Platforms:   []string{"arch"},
			Managers:    []string{"pacman"},
		},
		{
			ID:          "arch/keyring-stale",
			Name:        "Package keyring out of date",
			Description: "Signatures fail because the archlinux-keyring package is too old.",
			Category:    CategoryKeyring,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)signature from "[^"]*" is (?:unknown trust|invalid)|key "?([0-9A-Fa-f]+)"? could not be looked up remotely`, "key_id"),
			},
			Fix:         UpdateComponent("keyring"),
			SuccessRate: 0.85,
			Platforms:   []string{"arch"},
			Managers:    []string{"pacman"},
		},
		{
			ID:          "arch/partial-upgrade",
			Name:        "Partial upgrade broke a library",
			Description: "A binary fails against a newer or missing shared library; the fix on a rolling release is a full upgrade.",
			Category:    CategoryLibrary,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchCombined(`error while loading shared libraries|GLIBC_[0-9.]+' not found`),
			},
			Fix:         Command("pacman", "-Syu", "--noconfirm"),
			SuccessRate: 0.75,
			Platforms:   []string{"arch"},
			Managers:    []string{"pacman"},
		},
		{
			ID:          "arch/mirror-failure",
			Name:        "Mirror failed to deliver",
			Description: "A configured mirror keeps failing; forcing a refresh usually picks a healthy one.",
			Category:    CategoryRepository,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)failed retrieving file '[^']+' from ([A-Za-z0-9_.-]+)`, "mirror"),
			},
			Fix: CleanRetry(true,
				[]string{"pacman", "-Syy", "--noconfirm"},
			),
			SuccessRate: 0.7,
			Platforms:   []string{"arch"},
			Managers:    []string{"pacman"},
		},
	}
}
