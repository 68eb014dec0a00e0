// Package hook implements the ordered callback registry run at epoch
// boundaries, plus a few stock hooks. Hooks hold their state as struct
// fields rather than captured free variables.
package hook

import (
	"errors"
	"fmt"
)

// ErrMetricNotFound indicates a hook monitors a metric the trainer has
// never produced.
var ErrMetricNotFound = errors.New("hook: monitored metric not found")

// Trainer is the surface hooks get to act on. The concrete trainer
// implements it; hooks may mutate orchestration state through it, e.g.
// trigger termination.
type Trainer interface {
	Epoch() int
	SaveCheckpoint(replacePrevious bool) error
	TerminateTraining() error
	LastMetrics(source string) map[string]float64
}

// Func is one hook. A returned error aborts the remaining hooks and the
// enclosing epoch step.
type Func func(t Trainer) error

// Registry is an ordered list of hooks invoked synchronously.
type Registry struct {
	hooks []Func
}

// Register appends a hook. Registration order is execution order.
func (r *Registry) Register(h Func) {
	r.hooks = append(r.hooks, h)
}

// Execute runs every registered hook in order, stopping at the first
// error.
func (r *Registry) Execute(t Trainer) error {
	for _, h := range r.hooks {
		if err := h(t); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int { return len(r.hooks) }

// Saving returns a hook that checkpoints the model.
func Saving(replacePrevious bool) Func {
	return func(t Trainer) error {
		return t.SaveCheckpoint(replacePrevious)
	}
}

// Static adapts a plain function that ignores the trainer.
func Static(fn func()) Func {
	return func(Trainer) error {
		fn()
		return nil
	}
}

// Every wraps a hook so it only runs when epoch % interval == start.
func Every(interval, start int, h Func) Func {
	return func(t Trainer) error {
		if t.Epoch()%interval == start {
			return h(t)
		}
		return nil
	}
}

// EarlyStopping terminates training when a monitored metric stops
// improving. Best-so-far and the wait counter live here as fields.
type EarlyStopping struct {
	Source      string // metrics source to monitor, e.g. "val"
	Metric      string
	MinDelta    float64
	Patience    int
	LowerIsBest bool
	StartEpoch  int

	best float64
	wait int
	init bool
}

// Hook returns the registry-compatible form of the stopper.
func (s *EarlyStopping) Hook() Func {
	return func(t Trainer) error {
		return s.observe(t)
	}
}

func (s *EarlyStopping) observe(t Trainer) error {
	if t.Epoch() < s.StartEpoch {
		return nil
	}
	values := t.LastMetrics(s.Source)
	value, ok := values[s.Metric]
	if !ok {
		return fmt.Errorf("%w: %q in source %q", ErrMetricNotFound, s.Metric, s.Source)
	}
	if !s.init {
		s.init = true
		s.best = value
		s.wait = 0
		return nil
	}
	if s.improved(value) {
		s.best = value
		s.wait = 0
		return nil
	}
	s.wait++
	if s.wait >= s.Patience {
		return t.TerminateTraining()
	}
	return nil
}

func (s *EarlyStopping) improved(value float64) bool {
	if s.LowerIsBest {
		return value < s.best-s.MinDelta
	}
	return value > s.best+s.MinDelta
}
