package recovery

import "sync"

// MetricsSnapshot is a point-in-time copy of the engine counters.
type MetricsSnapshot struct {
	FailuresSeen     int `json:"failures_seen" yaml:"failures_seen"`
	PatternsMatched  int `json:"patterns_matched" yaml:"patterns_matched"`
	FixesAttempted   int `json:"fixes_attempted" yaml:"fixes_attempted"`
	FixesSucceeded   int `json:"fixes_succeeded" yaml:"fixes_succeeded"`
	FixesFailed      int `json:"fixes_failed" yaml:"fixes_failed"`
	FixesDeclined    int `json:"fixes_declined" yaml:"fixes_declined"`
	AutoSkipped      int `json:"auto_skipped" yaml:"auto_skipped"`
	BudgetExhausted  int `json:"budget_exhausted" yaml:"budget_exhausted"`
	OriginalsRetried int `json:"originals_retried" yaml:"originals_retried"`
}

// Metrics counts what the engine did. Counters are cumulative per process
// and safe for concurrent use. A nil *Metrics discards every increment.
type Metrics struct {
	mu sync.Mutex
	c  MetricsSnapshot
}

func (m *Metrics) bump(f func(*MetricsSnapshot)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	f(&m.c)
	m.mu.Unlock()
}

func (m *Metrics) FailureSeen()     { m.bump(func(c *MetricsSnapshot) { c.FailuresSeen++ }) }
func (m *Metrics) FixAttempted()    { m.bump(func(c *MetricsSnapshot) { c.FixesAttempted++ }) }
func (m *Metrics) FixSucceeded()    { m.bump(func(c *MetricsSnapshot) { c.FixesSucceeded++ }) }
func (m *Metrics) FixFailed()       { m.bump(func(c *MetricsSnapshot) { c.FixesFailed++ }) }
func (m *Metrics) FixDeclined()     { m.bump(func(c *MetricsSnapshot) { c.FixesDeclined++ }) }
func (m *Metrics) AutoSkip()        { m.bump(func(c *MetricsSnapshot) { c.AutoSkipped++ }) }
func (m *Metrics) BudgetExhaust()   { m.bump(func(c *MetricsSnapshot) { c.BudgetExhausted++ }) }
func (m *Metrics) OriginalRetried() { m.bump(func(c *MetricsSnapshot) { c.OriginalsRetried++ }) }

func (m *Metrics) PatternsMatched(n int) {
	m.bump(func(c *MetricsSnapshot) { c.PatternsMatched += n })
}

// Snapshot returns a copy for rendering.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c
}
