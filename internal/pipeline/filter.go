package pipeline

import (
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/health"
	"github.com/relabs-tech/motion_computer/internal/imu"
)

// Filter turns a raw sample into a processed one. Calibration and filtering
// algorithms plug in here.
type Filter interface {
	Apply(imu.Raw) imu.Processed
}

// PassThrough is the identity Filter.
type PassThrough struct{}

func (PassThrough) Apply(r imu.Raw) imu.Processed { return imu.Processed(r) }

// filterTask moves every queued raw sample through the filter, one processed
// sample per raw sample.
type filterTask struct {
	c      *Context
	filter Filter
	health *health.Component
	log    *log.Entry
}

func newFilterTask(c *Context, f Filter) *filterTask {
	if f == nil {
		f = PassThrough{}
	}
	return &filterTask{
		c:      c,
		filter: f,
		health: c.Health.Get(ComponentFilter),
		log:    c.Log.WithField("task", "filter"),
	}
}

// step returns the number of samples processed.
func (t *filterTask) step() int {
	n := 0
	for {
		raw, ok := t.c.RawIMU.TryReceive()
		if !ok {
			break
		}
		n++
		t.health.RecordSuccess()
		recordSend(t.health, t.c.ProcessedIMU.Send(t.filter.Apply(raw)))
	}
	if t.health.ShouldReport(t.c.Config.Health.ReportInterval * 2) {
		t.health.Report(t.log)
	}
	return n
}
