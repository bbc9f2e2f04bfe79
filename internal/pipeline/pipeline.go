package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/imu"
)

// Task priorities, highest first.
const (
	PriorityIMU        = 6
	PriorityGPS        = 4
	PriorityProcessing = 2
)

// Devices are the collaborators the pipeline reads from. Mag and GPS may be
// nil when the hardware is absent.
type Devices struct {
	AccelGyro imu.AccelGyroReader
	Mag       imu.MagReader
	GPS       io.Reader
	Decoder   gps.Decoder
	Filter    Filter
}

// Pipeline owns the task set built around one Context.
type Pipeline struct {
	c    *Context
	sink Sink

	acq      *acquisitionTask
	filter   *filterTask
	gps      *gpsTask
	fusion   *fusionTask
	consumer *consumerTask
	health   *healthTask
}

// New builds the tasks. sink may be nil.
func New(c *Context, dev Devices, sink Sink) (*Pipeline, error) {
	if dev.AccelGyro == nil {
		return nil, errors.New("pipeline: accel/gyro device is required")
	}
	if dev.GPS != nil && dev.Decoder == nil {
		return nil, errors.New("pipeline: gps reader given without a decoder")
	}
	p := &Pipeline{
		c:        c,
		sink:     sink,
		acq:      newAcquisitionTask(c, dev.AccelGyro, dev.Mag),
		filter:   newFilterTask(c, dev.Filter),
		fusion:   newFusionTask(c),
		consumer: newConsumerTask(c, sink, time.Now()),
		health:   newHealthTask(c, sink),
	}
	if dev.GPS != nil {
		p.gps = newGPSTask(c, dev.GPS, dev.Decoder)
	}
	return p, nil
}

// Context returns the shared context the pipeline was built with.
func (p *Pipeline) Context() *Context { return p.c }

// ExecContexts returns the two task groups: sampling on the critical CPU and
// everything downstream on the best-effort CPU.
func (p *Pipeline) ExecContexts() (critical, bestEffort ExecContext) {
	cfg := p.c.Config
	critical = ExecContext{Name: "critical", CPU: -1}
	bestEffort = ExecContext{Name: "best-effort", CPU: -1}
	if cfg.Sched.Pin {
		critical.CPU = cfg.Sched.CriticalCPU
		bestEffort.CPU = cfg.Sched.BestEffortCPU
	}

	critical.Tasks = append(critical.Tasks, Task{
		Name: "imu", Period: cfg.Timing.IMUPeriod, Priority: PriorityIMU,
		Step: func(_ context.Context, now time.Time) { p.acq.step(now) },
	})
	if p.gps != nil {
		critical.Tasks = append(critical.Tasks, Task{
			Name: "gps", Period: cfg.Timing.GPSPeriod, Priority: PriorityGPS,
			Step: func(ctx context.Context, now time.Time) { p.gps.step(ctx, now) },
		})
	}

	bestEffort.Tasks = []Task{
		{
			Name: "filter", Period: cfg.Timing.FilterPeriod, Priority: PriorityProcessing,
			Step: func(context.Context, time.Time) { p.filter.step() },
		},
		{
			Name: "fusion", Period: cfg.Timing.FusionPeriod, Priority: PriorityProcessing,
			Step: func(_ context.Context, now time.Time) { p.fusion.step(now) },
		},
		{
			Name: "consumer", Period: cfg.Timing.ConsumerPeriod, Priority: PriorityProcessing,
			Step: func(context.Context, time.Time) { p.consumer.step(time.Now()) },
		},
		{
			Name: "health", Period: cfg.Timing.HealthPeriod,
			Step: func(_ context.Context, now time.Time) { p.health.step(now) },
		},
	}
	return critical, bestEffort
}

// Run starts both execution contexts and blocks until ctx is cancelled or a
// task fails. Cancellation is not an error.
func (p *Pipeline) Run(ctx context.Context) error {
	critical, bestEffort := p.ExecContexts()
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()

	p.c.Log.WithField("tasks", len(critical.Tasks)+len(bestEffort.Tasks)).Info("pipeline starting")
	critical.Go(gctx, g, p.c.Log, start)
	bestEffort.Go(gctx, g, p.c.Log, start)

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.c.Log.Info("pipeline stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}
