// Package experiment holds the per-run context shared by every
// orchestrator: name, artifact location, the binding registry and the
// event sink. It is constructed once and passed by reference; there is
// no process-wide current experiment.
package experiment

import (
	"path/filepath"
	"time"

	"github.com/san-kum/trainlab/internal/binding"
	"github.com/san-kum/trainlab/internal/checkpoint"
	"github.com/san-kum/trainlab/internal/event"
)

type Experiment struct {
	Name        string
	Dir         string
	Bindings    *binding.Registry
	Sink        event.Sink
	Checkpoints *checkpoint.Store
}

// New wires a run context. An empty name defaults to a timestamp; a nil
// sink discards events. Directories are created lazily on first save.
func New(name, dir string, sink event.Sink) *Experiment {
	if name == "" {
		name = time.Now().Format("2006-01-02T15-04-05")
	}
	if sink == nil {
		sink = event.Nop{}
	}
	return &Experiment{
		Name:        name,
		Dir:         dir,
		Bindings:    binding.NewRegistry(),
		Sink:        sink,
		Checkpoints: checkpoint.NewStore(filepath.Join(dir, name, "checkpoints")),
	}
}
