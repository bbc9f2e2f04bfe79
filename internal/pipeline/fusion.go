package pipeline

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/health"
	"github.com/relabs-tech/motion_computer/internal/imu"
	"github.com/relabs-tech/motion_computer/internal/motion"
	"github.com/relabs-tech/motion_computer/internal/queue"
)

// fusionTask combines the newest processed sample with the last valid fix.
type fusionTask struct {
	c      *Context
	health *health.Component
	log    *log.Entry

	// lastFix is the most recent valid fix. It outlives the queue entry it
	// came from and is only replaced by a newer valid fix.
	lastFix  gps.Fix
	haveFix  bool
	maxAge   time.Duration
	staleLog bool
}

func newFusionTask(c *Context) *fusionTask {
	return &fusionTask{
		c:      c,
		health: c.Health.Get(ComponentFusion),
		log:    c.Log.WithField("task", "fusion"),
		maxAge: c.Config.GPS.FixMaxAge,
	}
}

// step drains ProcessedIMU, keeps only the newest sample and fuses it. Older
// samples drained in the same cycle are discarded. No state is produced when
// no sample arrived since the last cycle.
func (t *fusionTask) step(now time.Time) (motion.State, bool) {
	s, _, ok := queue.DrainToLatest[imu.Processed](t.c.ProcessedIMU)
	t.pollFix()
	if !ok {
		return motion.State{}, false
	}

	valid := t.haveFix
	if valid && t.maxAge > 0 && t.lastFix.Age(now) > t.maxAge {
		valid = false
		if !t.staleLog {
			t.log.Warnf("last fix is %v old, reporting GPS invalid", t.lastFix.Age(now).Round(time.Second))
			t.staleLog = true
		}
	}

	st := motion.Fuse(s, t.lastFix, valid)
	t.health.RecordSuccess()
	recordSend(t.health, t.c.Fused.Send(st))

	if t.health.ShouldReport(t.c.Config.Health.ReportInterval) {
		t.health.Report(t.log)
	}
	return st, true
}

// pollFix takes at most one record off the fix queue per cycle.
func (t *fusionTask) pollFix() {
	rec, ok := t.c.Fixes.TryReceive()
	if !ok || !rec.Fix.Valid {
		return
	}
	t.lastFix = rec.Fix
	t.haveFix = true
	t.staleLog = false
}
