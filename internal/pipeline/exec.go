package pipeline

import (
	"context"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/motion_computer/internal/timing"
)

// Task is one periodic loop body. Step is called once per period with the
// scheduled wake time.
type Task struct {
	Name     string
	Period   time.Duration
	Priority int // higher runs first; mapped onto the thread's nice value
	Step     func(ctx context.Context, now time.Time)
}

// ExecContext is a group of tasks that share a CPU. Every task gets its own
// locked OS thread so priorities and affinity apply per task.
type ExecContext struct {
	Name  string
	CPU   int // -1 leaves the threads unpinned
	Tasks []Task
}

// Go starts every task of e on g. The tasks stop when ctx is done.
func (e ExecContext) Go(ctx context.Context, g *errgroup.Group, entry *log.Entry, start time.Time) {
	for _, task := range e.Tasks {
		g.Go(func() error {
			return e.run(ctx, entry.WithFields(log.Fields{"exec": e.Name, "task": task.Name}), task, start)
		})
	}
}

func (e ExecContext) run(ctx context.Context, entry *log.Entry, task Task, start time.Time) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.CPU >= 0 {
		if err := pinThread(e.CPU); err != nil {
			entry.WithError(err).Warnf("could not pin to CPU %d", e.CPU)
		}
	}
	if err := setThreadPriority(task.Priority); err != nil {
		entry.WithError(err).Debug("could not set thread priority")
	}
	entry.Infof("started, period %v", task.Period)

	p := timing.NewPeriodic(start, task.Period)
	var logged uint64
	for {
		wake := p.Next()
		if err := p.Wait(ctx); err != nil {
			entry.Info("stopped")
			return err
		}
		task.Step(ctx, wake)
		if o := p.Overruns(); o > logged && (logged == 0 || o-logged >= 100) {
			entry.Warnf("missed %d deadlines so far", o)
			logged = o
		}
	}
}
