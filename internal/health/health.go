// Package health tracks per-component operation counters and decides when a
// component is worth reporting on.
//
// Every Component has exactly one writer, the task that owns it. Counters are
// atomics only so other tasks (the health summary, the web API) can take a
// consistent-enough snapshot without locking.
package health

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// Policy holds the reporting thresholds shared by all components.
type Policy struct {
	// MinSamples is the number of operations below which nothing is reported.
	MinSamples uint64
	// SuccessThreshold is the success rate (percent) under which a component
	// is considered unhealthy.
	SuccessThreshold uint64
}

// DefaultPolicy matches the firmware defaults: 10 operations, 95%.
var DefaultPolicy = Policy{MinSamples: 10, SuccessThreshold: 95}

// Component holds the counters of one monitored component.
type Component struct {
	name   string
	policy Policy

	total     atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
	drops     atomic.Uint64
	hasIssue  atomic.Bool

	lastReportTotal atomic.Uint64
}

// NewComponent creates a component with the given reporting policy.
func NewComponent(name string, policy Policy) *Component {
	return &Component{name: name, policy: policy}
}

func (c *Component) Name() string { return c.name }

// RecordSuccess counts a successful operation.
func (c *Component) RecordSuccess() {
	c.total.Add(1)
	c.successes.Add(1)
}

// RecordFailure counts a failed operation and flags an issue.
func (c *Component) RecordFailure() {
	c.total.Add(1)
	c.failures.Add(1)
	c.hasIssue.Store(true)
}

// RecordDrop counts an item lost to a full queue. Drops are not operations
// and do not move the total.
func (c *Component) RecordDrop() {
	c.drops.Add(1)
	c.hasIssue.Store(true)
}

// SuccessRate returns successes*100/total, or 0 before any operation.
func (c *Component) SuccessRate() uint64 {
	return rate(c.successes.Load(), c.total.Load())
}

func rate(successes, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	return successes * 100 / total
}

// ShouldReport is true once interval operations have happened since the last
// report attempt.
func (c *Component) ShouldReport(interval uint64) bool {
	return c.total.Load()-c.lastReportTotal.Load() >= interval
}

// Snapshot is a copy of a component's counters.
type Snapshot struct {
	Name        string `json:"name"`
	Total       uint64 `json:"total"`
	Successes   uint64 `json:"successes"`
	Failures    uint64 `json:"failures"`
	Drops       uint64 `json:"drops"`
	SuccessRate uint64 `json:"success_rate"`
	HasIssue    bool   `json:"has_issue"`
}

// Snapshot returns the current counters.
func (c *Component) Snapshot() Snapshot {
	total := c.total.Load()
	successes := c.successes.Load()
	return Snapshot{
		Name:        c.name,
		Total:       total,
		Successes:   successes,
		Failures:    c.failures.Load(),
		Drops:       c.drops.Load(),
		SuccessRate: rate(successes, total),
		HasIssue:    c.hasIssue.Load(),
	}
}

// Unhealthy applies the reporting rule to a snapshot: enough samples, and
// either an unreported issue, a drop, or a low success rate.
func (p Policy) Unhealthy(s Snapshot) bool {
	if s.Total == 0 || s.Total < p.MinSamples {
		return false
	}
	return s.HasIssue || s.Drops > 0 || s.SuccessRate < p.SuccessThreshold
}

// Report logs a warning for the component if it is unhealthy and returns the
// snapshot it judged. Healthy components are silent. Below MinSamples
// nothing changes; otherwise the issue flag is cleared and the report mark
// advanced, while the cumulative counters are kept.
//
// Only the owning task may call Report.
func (c *Component) Report(entry *log.Entry) (Snapshot, bool) {
	s := c.Snapshot()
	if s.Total == 0 || s.Total < c.policy.MinSamples {
		return s, false
	}
	reported := false
	if c.policy.Unhealthy(s) {
		fields := log.Fields{
			"component":    s.Name,
			"success_rate": s.SuccessRate,
			"successes":    s.Successes,
			"total":        s.Total,
		}
		if s.Drops > 0 {
			fields["drops"] = s.Drops
		}
		entry.WithFields(fields).Warnf("%s issues: success %d%% (%s/%s)",
			s.Name, s.SuccessRate, humanize.Comma(int64(s.Successes)), humanize.Comma(int64(s.Total)))
		reported = true
	}
	c.hasIssue.Store(false)
	c.lastReportTotal.Store(s.Total)
	return s, reported
}
