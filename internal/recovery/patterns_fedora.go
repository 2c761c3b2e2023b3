package recovery

// fedoraPatterns recognizes dnf/rpm failures on Red Hat-family systems.
func fedoraPatterns() []ErrorPattern {
	return []ErrorPattern{
		{
			ID:          "fedora/repo-metadata-failure",
			Name:        "Repository metadata download failed",
			Description: "dnf could not refresh one repository's metadata.",
			Category:    CategoryNetwork,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)failed to download metadata for repo '([^']+)'`, "repo"),
			},
			Fix: CleanRetry(true,
				[]string{"dnf", "clean", "metadata"},
				[]string{"dnf", "makecache"},
			),
			SuccessRate: 0.8,
			Platforms:   []string{"fedora"},
			Managers:    []string{"dnf"},
		},
		{
			ID:          "fedora/rpmdb-corrupt",
			Name:        "RPM database corrupted",
			Description: "The rpm database is damaged; rebuilding it is almost always safe and effective.",
			Category:    CategoryDatabase,
			Severity:    SeverityCritical,
			Matchers: []PatternMatcher{
				MatchCombined(`(?i)rpmdb(?:_[a-z]+)? open failed|error: db[0-9]+ error|thread died in berkeley db library|rpmdb: damaged header`),
			},
			Fix:         Command("rpm", "--rebuilddb"),
			SuccessRate: 0.9,
			Platforms:   []string{"fedora"},
			Managers:    []string{"dnf"},
		},
		{
			ID:          "fedora/gpg-check-failed",
			Name:        "Package signature check failed",
			Description: "A package signature could not be verified against the installed keys.",
			Category:    CategorySignature,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchCombined(`(?i)GPG check FAILED|public key for [^ ]+ is not installed`),
			},
			Fix:         BuiltIn("refresh_keyring"),
			SuccessRate: 0.7,
			Platforms:   []string{"fedora"},
			Managers:    []string{"dnf"},
		},
		{
			ID:          "fedora/dnf-lock-busy",
			Name:        "dnf lock held",
			Description: "Another dnf process holds the metadata lock, possibly stale.",
			Category:    CategoryLock,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)waiting for process with pid (\d+)`, "pid"),
			},
			Fix:         BuiltIn("clear_locks"),
			SuccessRate: 0.7,
			Platforms:   []string{"fedora"},
			Managers:    []string{"dnf"},
		},
		{
			ID:          "fedora/package-corrupt",
			Name:        "Installed package corrupted",
			Description: "Files of an installed package fail verification.",
			Category:    CategoryPackage,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchCombined(`(?i)package ([A-Za-z0-9._+-]+) (?:is corrupt|does not verify|digests? (?:do not|don't) match)`, "package"),
			},
			Fix:         Rebuild("{package}"),
			SuccessRate: 0.8,
			Platforms:   []string{"fedora"},
			Managers:    []string{"dnf"},
		},
	}
}
