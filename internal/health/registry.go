package health

import (
	"fmt"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// Registry is the fixed set of components created at start-up.
type Registry struct {
	policy     Policy
	components []*Component
	byName     map[string]*Component
}

// NewRegistry creates one component per name, in order.
func NewRegistry(policy Policy, names ...string) (*Registry, error) {
	r := &Registry{policy: policy, byName: make(map[string]*Component, len(names))}
	for _, name := range names {
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("health: duplicate component %q", name)
		}
		c := NewComponent(name, policy)
		r.components = append(r.components, c)
		r.byName[name] = c
	}
	return r, nil
}

// Get returns the named component or nil.
func (r *Registry) Get(name string) *Component {
	return r.byName[name]
}

func (r *Registry) Policy() Policy { return r.policy }

// Snapshots returns a snapshot of every component, in registration order.
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c.Snapshot())
	}
	return out
}

// LogSummary writes a one-line summary per component. Unhealthy ones are
// logged at warn level. Nothing is mutated, so any task may call it.
func (r *Registry) LogSummary(entry *log.Entry) []Snapshot {
	snaps := r.Snapshots()
	for _, s := range snaps {
		e := entry.WithFields(log.Fields{
			"component":    s.Name,
			"total":        s.Total,
			"failures":     s.Failures,
			"drops":        s.Drops,
			"success_rate": s.SuccessRate,
		})
		msg := fmt.Sprintf("%s: %s ops, %d%% ok", s.Name, humanize.Comma(int64(s.Total)), s.SuccessRate)
		if r.policy.Unhealthy(s) {
			e.Warn(msg)
		} else {
			e.Debug(msg)
		}
	}
	return snaps
}
