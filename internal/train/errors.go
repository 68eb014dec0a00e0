package train

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCollaborator indicates an engine was built without a
	// required loader, objective or optimizer.
	ErrMissingCollaborator = errors.New("train: missing collaborator")

	// ErrRunning indicates a pass was started while one is in flight.
	ErrRunning = errors.New("train: pass already running")
)

// ConvergenceError reports a NaN or infinite criterion. It aborts the
// remaining batches of the current epoch only; the run continues.
type ConvergenceError struct {
	Value float64
	Epoch int
	Batch int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("train: criterion diverged to %v at epoch %d batch %d",
		e.Value, e.Epoch, e.Batch)
}
