package pipeline

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/health"
	"github.com/relabs-tech/motion_computer/internal/motion"
	"github.com/relabs-tech/motion_computer/internal/queue"
	"github.com/relabs-tech/motion_computer/internal/timing"
)

// consumerTask hands the newest fused state to the sinks and tracks how old
// it was on arrival.
type consumerTask struct {
	c       *Context
	sink    Sink
	health  *health.Component
	latency *timing.LatencyStats
	limiter *timing.RateLimiter
	log     *log.Entry
}

func newConsumerTask(c *Context, sink Sink, now time.Time) *consumerTask {
	return &consumerTask{
		c:       c,
		sink:    sink,
		health:  c.Health.Get(ComponentConsumer),
		latency: timing.NewLatencyStats(c.Config.Latency.Threshold, c.Config.Latency.ReportInterval, now),
		limiter: timing.NewRateLimiter(c.Config.Log.HighFreqHz),
		log:     c.Log.WithField("task", "consumer"),
	}
}

func (t *consumerTask) step(now time.Time) (motion.State, bool) {
	st, n, ok := queue.DrainToLatest[motion.State](t.c.Fused)
	if ok {
		lat := now.Sub(st.Timestamp)
		t.latency.Update(lat)
		t.c.Latest.Store(st)
		if t.sink != nil {
			t.sink.PublishState(st, lat)
		}
		t.health.RecordSuccess()
		t.trace(now, st, n, lat)
	}
	t.latency.Report(t.log, "consumer", now)
	if t.health.ShouldReport(t.c.Config.Health.ReportInterval / 10) {
		t.health.Report(t.log)
	}
	return st, ok
}

func (t *consumerTask) trace(now time.Time, st motion.State, drained int, lat time.Duration) {
	if !t.log.Logger.IsLevelEnabled(log.DebugLevel) {
		return
	}
	if !t.c.Runtime.Verbose() {
		if ok, _ := t.limiter.Allow(now); !ok {
			return
		}
	}
	e := t.log.WithFields(log.Fields{"drained": drained, "latency_ms": float64(lat) / float64(time.Millisecond)})
	if st.GPSValid {
		e.Debugf("roll %.1f pitch %.1f |a| %.2fg | %.6f, %.6f %.1fkn",
			st.Pose.Roll, st.Pose.Pitch, st.TotalAccel, st.Latitude, st.Longitude, st.SpeedKnots)
		return
	}
	e.Debugf("roll %.1f pitch %.1f |a| %.2fg | no fix", st.Pose.Roll, st.Pose.Pitch, st.TotalAccel)
}
