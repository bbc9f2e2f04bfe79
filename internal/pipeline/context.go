// Package pipeline wires the acquisition, filter, fusion and consumer stages
// together through bounded queues and runs them as fixed-period tasks.
package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/health"
	"github.com/relabs-tech/motion_computer/internal/imu"
	"github.com/relabs-tech/motion_computer/internal/motion"
	"github.com/relabs-tech/motion_computer/internal/queue"
)

// Health component names, one per writing task.
const (
	ComponentIMU      = "imu"
	ComponentMag      = "mag"
	ComponentGPS      = "gps"
	ComponentFilter   = "filter"
	ComponentFusion   = "fusion"
	ComponentConsumer = "consumer"
)

// Context holds everything the tasks share. It is built once at start-up and
// handed to every task; there is no package-level state.
//
// Each queue has one sending and one receiving task, and each health
// component is written by one task only:
//
//	RawIMU        acquisition -> filter     (imu, mag)
//	ProcessedIMU  filter      -> fusion     (filter)
//	Fixes         gps         -> fusion     (gps)
//	Fused         fusion      -> consumer   (fusion)
//	                             consumer   (consumer)
type Context struct {
	Session uuid.UUID
	Config  *config.Config
	Runtime *config.Runtime
	Log     *log.Entry

	RawIMU       *queue.Queue[imu.Raw]
	ProcessedIMU *queue.Queue[imu.Processed]
	Fixes        *queue.Queue[gps.Record]
	Fused        *queue.Queue[motion.State]

	Health *health.Registry

	// Latest is the newest state seen by the consumer. Written by the
	// consumer task only.
	Latest *Latest
}

// NewContext creates the queues and health records described by cfg.
func NewContext(cfg *config.Config, rt *config.Runtime) (*Context, error) {
	policy := health.Policy{
		MinSamples:       cfg.Health.MinSamples,
		SuccessThreshold: cfg.Health.SuccessThreshold,
	}
	reg, err := health.NewRegistry(policy,
		ComponentIMU, ComponentMag, ComponentGPS, ComponentFilter, ComponentFusion, ComponentConsumer)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Session: uuid.New(),
		Config:  cfg,
		Runtime: rt,
		Health:  reg,
		Latest:  &Latest{},
	}
	c.Log = rt.Logger().WithField("session", c.Session.String()[:8])

	if c.RawIMU, err = queue.New[imu.Raw]("imu_raw", cfg.Queues.IMURaw, queue.DropOldestKeepNewest); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if c.ProcessedIMU, err = queue.New[imu.Processed]("imu_processed", cfg.Queues.IMUProcessed, queue.DropOldestKeepNewest); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if c.Fixes, err = queue.New[gps.Record]("gps", cfg.Queues.GPS, queue.DropNew); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if c.Fused, err = queue.New[motion.State]("fused", cfg.Queues.Fused, queue.DropOldestKeepNewest); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return c, nil
}

// QueueStatus describes the fill level of one queue.
type QueueStatus struct {
	Name    string      `json:"name"`
	Len     int         `json:"len"`
	Cap     int         `json:"cap"`
	Policy  string      `json:"policy"`
	Stats   queue.Stats `json:"stats"`
	FillPct float64     `json:"fill_pct"`
}

type statusQueue interface {
	Name() string
	Len() int
	Cap() int
	Policy() queue.Policy
	Stats() queue.Stats
}

// Queues returns the status of every queue.
func (c *Context) Queues() []QueueStatus {
	qs := []statusQueue{c.RawIMU, c.ProcessedIMU, c.Fixes, c.Fused}
	out := make([]QueueStatus, 0, len(qs))
	for _, q := range qs {
		n, capacity := q.Len(), q.Cap()
		out = append(out, QueueStatus{
			Name:    q.Name(),
			Len:     n,
			Cap:     capacity,
			Policy:  q.Policy().String(),
			Stats:   q.Stats(),
			FillPct: float64(n) * 100 / float64(capacity),
		})
	}
	return out
}

// Latest holds the most recent fused state for readers outside the pipeline
// (web API, display). It is never reset once set.
type Latest struct {
	p atomic.Pointer[motion.State]
}

// Store replaces the held state.
func (l *Latest) Store(st motion.State) { l.p.Store(&st) }

// Load returns the held state; ok is false before the first Store.
func (l *Latest) Load() (motion.State, bool) {
	p := l.p.Load()
	if p == nil {
		return motion.State{}, false
	}
	return *p, true
}

// recordSend accounts for an item lost by a queue send.
func recordSend(c *health.Component, r queue.Result) {
	if r.Dropped() {
		c.RecordDrop()
	}
}
