package recovery

// debianPatterns recognizes apt/dpkg failures on Debian-family systems.
func debianPatterns() []ErrorPattern {
	return []ErrorPattern{
		{
			ID:          "debian/dpkg-lock-held",
			Name:        "dpkg database locked",
			Description: "Another process holds the dpkg lock, or a crashed run left it behind.",
			Category:    CategoryLock,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)could not get lock (/var/lib/dpkg/lock(?:-frontend)?|/var/lib/apt/lists/lock|/var/cache/apt/archives/lock)`, "lock_path"),
				MatchExitCode(100),
			},
			Fix: CommandSequence(
				[]string{"rm", "-f", "/var/lib/dpkg/lock-frontend"},
				[]string{"rm", "-f", "/var/lib/dpkg/lock"},
				[]string{"rm", "-f", "/var/cache/apt/archives/lock"},
				[]string{"dpkg", "--configure", "-a"},
			),
			SuccessRate: 0.85,
			Platforms:   []string{"debian"},
			Managers:    []string{"apt"},
		},
		{
			ID:          "debian/dpkg-interrupted",
			Name:        "dpkg interrupted",
			Description: "A previous package operation was interrupted and must be completed.",
			Category:    CategoryPackage,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)dpkg was interrupted, you must manually run '(?:sudo )?dpkg --configure -a'`),
			},
			Fix:         Reconfigure("dpkg"),
			SuccessRate: 0.9,
			Platforms:   []string{"debian"},
			Managers:    []string{"apt"},
		},
		{
			ID:          "debian/unmet-dependencies",
			Name:        "Unmet dependencies",
			Description: "apt cannot satisfy the dependency graph for the requested change.",
			Category:    CategoryDependency,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchCombined(`(?i)unmet dependencies|you have held broken packages`),
			},
			Fix:         Command("apt-get", "install", "-f", "-y"),
			SuccessRate: 0.75,
			Platforms:   []string{"debian"},
			Managers:    []string{"apt"},
		},
		{
			ID:          "debian/hash-sum-mismatch",
			Name:        "Hash sum mismatch",
			Description: "Downloaded index files do not match their checksums; the local lists are stale or a mirror is mid-sync.",
			Category:    CategoryRepository,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)hash sum mismatch`),
			},
			Fix: CleanRetry(true,
				[]string{"apt-get", "clean"},
				[]string{"apt-get", "update"},
			),
			SuccessRate: 0.8,
			Platforms:   []string{"debian"},
			Managers:    []string{"apt"},
		},
		{
			ID:          "debian/missing-pubkey",
			Name:        "Repository key missing",
			Description: "A repository is signed with a key apt does not trust yet.",
			Category:    CategorySignature,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`NO_PUBKEY ([0-9A-Fa-f]{8,16})`, "key_id"),
			},
			Fix:         Command("apt-key", "adv", "--keyserver", "keyserver.ubuntu.com", "--recv-keys", "{key_id}"),
			SuccessRate: 0.7,
			Platforms:   []string{"debian"},
			Managers:    []string{"apt"},
		},
		{
			ID:          "debian/release-not-valid-yet",
			Name:        "Release file not valid yet",
			Description: "Index timestamps are in the future, which almost always means the system clock is wrong.",
			Category:    CategoryRepository,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)release file for .+ is not valid yet`),
			},
			Fix:         Command("timedatectl", "set-ntp", "true"),
			SuccessRate: 0.65,
			Platforms:   []string{"debian"},
			Managers:    []string{"apt"},
		},
		{
			ID:          "debian/missing-header",
			Name:        "Development header missing",
			Description: "A source build stopped at a missing C header.",
			Category:    CategoryBuild,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchCombined(`fatal error: ([A-Za-z0-9_/.+-]+\.h): No such file or directory`, "header"),
			},
			Fix:         BuiltIn("install_build_tools"),
			SuccessRate: 0.6,
			Platforms:   []string{"debian"},
		},
	}
}
