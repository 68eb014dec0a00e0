// Package binding enforces single-writer access to a model: at most one
// live training orchestrator may hold a model at a time. Read-only
// evaluators never register.
package binding

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAlreadyBound indicates the model is held by a live trainer.
	ErrAlreadyBound = errors.New("binding: model already bound to a trainer")

	// ErrNotBound indicates a release for a binding that does not exist
	// or belongs to another trainer.
	ErrNotBound = errors.New("binding: model not bound to this trainer")
)

// Registry records which trainer holds which model. It is the only
// state shared across orchestrator instances, so Bind and Release are
// mutually exclusive.
type Registry struct {
	mu     sync.Mutex
	owners map[string]string // model name -> trainer id
}

func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]string)}
}

// Bind records trainerID as the single writer for model.
func (r *Registry) Bind(trainerID, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.owners[model]; ok {
		return fmt.Errorf("%w: %q held by %q", ErrAlreadyBound, model, owner)
	}
	r.owners[model] = trainerID
	return nil
}

// Release frees the binding. The caller must be the current owner.
func (r *Registry) Release(trainerID, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[model]
	if !ok || owner != trainerID {
		return fmt.Errorf("%w: %q", ErrNotBound, model)
	}
	delete(r.owners, model)
	return nil
}

// Bound reports whether model currently has a live trainer.
func (r *Registry) Bound(model string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.owners[model]
	return ok
}
