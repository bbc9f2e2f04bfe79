package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Runtime holds the toggles that may change while the pipeline runs. It is
// created once and passed to whoever needs it; changes go through its
// setters only.
type Runtime struct {
	logger  *log.Logger
	verbose atomic.Bool
}

// NewRuntime applies cfg's logging settings to logger and returns the toggle
// object for it.
func NewRuntime(logger *log.Logger, cfg LogConfig) (*Runtime, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	switch cfg.Format {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	r := &Runtime{logger: logger}
	r.SetLevel(level)
	r.SetVerbose(cfg.Verbose)
	return r, nil
}

// Verbose reports whether high-frequency logging is unthrottled.
func (r *Runtime) Verbose() bool { return r.verbose.Load() }

// SetVerbose switches verbose mode. Turning it on also lowers the log level
// to debug so per-sample lines are visible.
func (r *Runtime) SetVerbose(on bool) {
	r.verbose.Store(on)
	if on && r.Level() < log.DebugLevel {
		r.SetLevel(log.DebugLevel)
	}
}

// Level returns the current log level.
func (r *Runtime) Level() log.Level { return r.logger.GetLevel() }

// SetLevel changes the log level of the underlying logger.
func (r *Runtime) SetLevel(level log.Level) { r.logger.SetLevel(level) }

// Logger returns the logger the toggles apply to.
func (r *Runtime) Logger() *log.Logger { return r.logger }

// ParseLevel accepts logrus level names, case-insensitively.
func ParseLevel(s string) (log.Level, error) {
	level, err := log.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
