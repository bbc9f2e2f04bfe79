// Package timing provides the fixed-period scheduler used by pipeline tasks
// and the latency and log-rate bookkeeping that goes with it.
package timing

import (
	"context"
	"time"
)

// Periodic wakes a loop at absolute times start+period, start+2*period, ...
// The next wake is derived from the previous wake, never from when the loop
// body finished, so execution jitter does not accumulate.
type Periodic struct {
	period   time.Duration
	next     time.Time
	overruns uint64
	now      func() time.Time
}

// NewPeriodic schedules the first wake one period after start.
func NewPeriodic(start time.Time, period time.Duration) *Periodic {
	return &Periodic{period: period, next: start.Add(period), now: time.Now}
}

func (p *Periodic) Period() time.Duration { return p.period }

// Next returns the next scheduled wake time.
func (p *Periodic) Next() time.Time { return p.next }

// Overruns counts the wakes that were already due when Wait was called.
func (p *Periodic) Overruns() uint64 { return p.overruns }

// Wait blocks until the next wake time or until ctx is done, then advances the
// schedule by one period. A wake that is already due returns at once, in which
// case the loop catches up on the following iterations.
func (p *Periodic) Wait(ctx context.Context) error {
	due := p.next
	p.next = p.next.Add(p.period)

	d := due.Sub(p.now())
	if d <= 0 {
		p.overruns++
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
