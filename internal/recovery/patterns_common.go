package recovery

// commonPatterns recognizes failures that look the same on every
// distribution: exhausted disk, denied permissions, broken name resolution,
// missing tools.
func commonPatterns() []ErrorPattern {
	return []ErrorPattern{
		{
			ID:          "common/no-space",
			Name:        "Disk full",
			Description: "The filesystem ran out of space mid-operation.",
			Category:    CategoryDiskSpace,
			Severity:    SeverityCritical,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)no space left on device`),
			},
			Fix:         BuiltIn("purge_cache"),
			SuccessRate: 0.8,
		},
		{
			ID:          "common/permission-denied",
			Name:        "Insufficient privileges",
			Description: "The command needs root privileges it does not have.",
			Category:    CategoryPermission,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)permission denied|operation not permitted|are you root\?`),
			},
			Fix:         Command("sudo", "sh", "-c", "{command}"),
			SuccessRate: 0.85,
		},
		{
			ID:          "common/dns-failure",
			Name:        "Name resolution failure",
			Description: "A repository host could not be resolved.",
			Category:    CategoryNetwork,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)(?:temporary failure resolving|could not resolve host|temporary failure in name resolution)(?:[ :]+'?([A-Za-z0-9_.-]+)'?)?`, "host"),
			},
			Fix:         Command("resolvectl", "flush-caches"),
			SuccessRate: 0.55,
		},
		{
			ID:          "common/network-timeout",
			Name:        "Download timed out",
			Description: "A mirror stopped responding; usually transient.",
			Category:    CategoryNetwork,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)connection timed out|connection reset by peer|timeout was reached`),
			},
			Fix:         CleanRetry(true),
			SuccessRate: 0.5,
		},
		{
			ID:          "common/command-not-found",
			Name:        "Command not found",
			Description: "A required executable is missing from PATH.",
			Category:    CategoryEnvironment,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchStderr(`(?:^|[:\s])([A-Za-z0-9_.+-]+): command not found`, "command"),
			},
			Fix:         Custom("resolve-command-package"),
			SuccessRate: 0.5,
		},
		{
			ID:          "common/locale-broken",
			Name:        "Broken locale settings",
			Description: "The configured locale does not exist on this system.",
			Category:    CategoryEnvironment,
			Severity:    SeverityLow,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)setting locale failed|cannot change locale`),
			},
			Fix: EnvironmentFix(true, map[string]string{
				"LANG":   "C.UTF-8",
				"LC_ALL": "C.UTF-8",
			}),
			SuccessRate: 0.75,
		},
		{
			ID:          "common/shared-library-missing",
			Name:        "Shared library missing",
			Description: "A binary cannot find one of its shared libraries.",
			Category:    CategoryLibrary,
			Severity:    SeverityHigh,
			Matchers: []PatternMatcher{
				MatchStderr(`error while loading shared libraries: ([^:]+): cannot open shared object file`, "library"),
			},
			Fix:         Command("ldconfig"),
			SuccessRate: 0.6,
		},
		{
			ID:          "common/compiler-missing",
			Name:        "Build tools missing",
			Description: "A source build failed because no compiler toolchain is installed.",
			Category:    CategoryBuild,
			Severity:    SeverityMedium,
			Matchers: []PatternMatcher{
				MatchCombined(`(?i)(?:gcc|g\+\+|cc|make): (?:command )?not found|C compiler cannot create executables`),
			},
			Fix:         BuiltIn("install_build_tools"),
			SuccessRate: 0.8,
		},
		{
			ID:          "common/readonly-filesystem",
			Name:        "Read-only filesystem",
			Description: "The root filesystem is mounted read-only, often after an I/O error.",
			Category:    CategoryConfiguration,
			Severity:    SeverityCritical,
			Matchers: []PatternMatcher{
				MatchStderr(`(?i)read-only file system`),
			},
			Fix:         Command("mount", "-o", "remount,rw", "/"),
			SuccessRate: 0.6,
			// Remounting a filesystem that went read-only can mask real disk
			// trouble; force the strong confirmation path.
			Risk: riskPtr(RiskHigh),
		},
	}
}
