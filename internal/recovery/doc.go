// Package recovery analyzes failed package-manager commands and drives
// remediation.
//
// The engine is built around a read-only repository of declarative error
// patterns. Each pattern pairs recognition rules (regular expressions over
// the captured output, plus exit-code tests) with a primary fix strategy.
// One failure event flows through four stages: matching, suggestion
// generation, a risk-tiered confirmation gate, and strategy execution.
//
// # Safety model
//
// Remediation strategies carry an ordered risk level (Safe < Low < Medium <
// High). The gate's policy is fixed: automatic mode never executes anything
// above Low risk, interactive mode escalates from silent application to a
// literal "YES" confirmation as risk grows, and dry-run mode executes
// nothing. Every executed fix step is announced before it runs and every
// outcome is reported.
//
// # Failure handling
//
// Malformed patterns are rejected wholesale when the repository loads;
// matching never fails at runtime. A fix that cannot be executed is a
// reported outcome, not an error escalation. Strategies the engine does not
// know how to perform (Custom hooks, unknown built-in names) are reported
// as unimplemented, never guessed at.
package recovery
