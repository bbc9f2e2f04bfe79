package pipeline

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// queueWarnPct is the fill level above which a queue is reported.
const queueWarnPct = 80

// healthTask logs a periodic summary of components and queues. It only reads
// shared state.
type healthTask struct {
	c    *Context
	sink Sink
	log  *log.Entry
}

func newHealthTask(c *Context, sink Sink) *healthTask {
	return &healthTask{c: c, sink: sink, log: c.Log.WithField("task", "health")}
}

func (t *healthTask) step(now time.Time) HealthReport {
	rep := HealthReport{
		Time:       now,
		Session:    t.c.Session.String(),
		Components: t.c.Health.LogSummary(t.log),
		Queues:     t.c.Queues(),
	}
	periods := map[string]time.Duration{
		"imu_raw":       t.c.Config.Timing.IMUPeriod,
		"imu_processed": t.c.Config.Timing.IMUPeriod,
		"gps":           t.c.Config.Timing.GPSPeriod,
		"fused":         t.c.Config.Timing.FusionPeriod,
	}
	for _, q := range rep.Queues {
		e := t.log.WithFields(log.Fields{
			"queue":   q.Name,
			"len":     q.Len,
			"cap":     q.Cap,
			"dropped": q.Stats.Dropped(),
		})
		// Buffered time at the producer's rate.
		buffered := time.Duration(q.Len) * periods[q.Name]
		if q.FillPct > queueWarnPct {
			e.Warnf("queue %s %.0f%% full (%v buffered)", q.Name, q.FillPct, buffered)
		} else {
			e.Debugf("queue %s %.0f%% full (%v buffered)", q.Name, q.FillPct, buffered)
		}
	}
	if t.sink != nil {
		t.sink.PublishHealth(rep)
	}
	return rep
}
