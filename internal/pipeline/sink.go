package pipeline

import (
	"time"

	"github.com/relabs-tech/motion_computer/internal/health"
	"github.com/relabs-tech/motion_computer/internal/motion"
)

// Sink receives the pipeline output. Implementations are called from
// best-effort tasks and must not block.
type Sink interface {
	// PublishState is called by the consumer with each newly drained state.
	PublishState(st motion.State, latency time.Duration)
	// PublishHealth is called by the health task once per period.
	PublishHealth(rep HealthReport)
}

// HealthReport is one periodic health summary.
type HealthReport struct {
	Time       time.Time         `json:"time"`
	Session    string            `json:"session"`
	Components []health.Snapshot `json:"components"`
	Queues     []QueueStatus     `json:"queues"`
}

// Sinks fans out to several sinks.
type Sinks []Sink

func (s Sinks) PublishState(st motion.State, latency time.Duration) {
	for _, sink := range s {
		sink.PublishState(st, latency)
	}
}

func (s Sinks) PublishHealth(rep HealthReport) {
	for _, sink := range s {
		sink.PublishHealth(rep)
	}
}
