package timing

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// LatencyStats accumulates end-to-end latency over a reporting window.
type LatencyStats struct {
	threshold time.Duration
	interval  time.Duration

	samples    uint64
	over       uint64
	min, max   time.Duration
	avg        time.Duration // exponential moving average, weight 1/10
	lastReport time.Time
}

// LatencyReport is the content of one emitted report.
type LatencyReport struct {
	Samples       uint64        `json:"samples"`
	OverThreshold uint64        `json:"over_threshold"`
	Min           time.Duration `json:"min_ns"`
	Max           time.Duration `json:"max_ns"`
	Avg           time.Duration `json:"avg_ns"`
}

// OnTimePercent is the share of samples at or under the threshold.
func (r LatencyReport) OnTimePercent() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Samples-r.OverThreshold) * 100 / float64(r.Samples)
}

// NewLatencyStats starts an empty window at now.
func NewLatencyStats(threshold, interval time.Duration, now time.Time) *LatencyStats {
	s := &LatencyStats{threshold: threshold, interval: interval}
	s.reset(now)
	return s
}

func (s *LatencyStats) reset(now time.Time) {
	s.samples = 0
	s.over = 0
	s.min = time.Duration(1<<63 - 1)
	s.max = 0
	s.avg = 0
	s.lastReport = now
}

// Update adds one latency sample.
func (s *LatencyStats) Update(d time.Duration) {
	s.samples++
	if d > s.max {
		s.max = d
	}
	if d < s.min {
		s.min = d
	}
	if d > s.threshold {
		s.over++
	}
	if s.samples == 1 {
		s.avg = d
	} else {
		s.avg = (s.avg*9 + d) / 10
	}
}

// Current returns the window so far without resetting it.
func (s *LatencyStats) Current() LatencyReport {
	r := LatencyReport{Samples: s.samples, OverThreshold: s.over, Max: s.max, Avg: s.avg}
	if s.samples > 0 {
		r.Min = s.min
	}
	return r
}

// Report emits and resets the window once interval has elapsed since the last
// report and at least one sample was taken. It returns false otherwise.
func (s *LatencyStats) Report(entry *log.Entry, name string, now time.Time) (LatencyReport, bool) {
	if now.Sub(s.lastReport) < s.interval || s.samples == 0 {
		return LatencyReport{}, false
	}
	r := s.Current()
	entry.WithFields(log.Fields{
		"task":    name,
		"avg_ms":  ms(r.Avg),
		"max_ms":  ms(r.Max),
		"min_ms":  ms(r.Min),
		"over":    r.OverThreshold,
		"samples": r.Samples,
	}).Infof("%s latency avg %.1fms max %.1fms min %.1fms, %.1f%% on time",
		name, ms(r.Avg), ms(r.Max), ms(r.Min), r.OnTimePercent())
	if r.OverThreshold > 0 {
		entry.WithField("task", name).Warnf("%s: %d samples exceeded %v latency target",
			name, r.OverThreshold, s.threshold)
	}
	s.reset(now)
	return r, true
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
