// Package train implements the training and evaluation engines: the
// epoch/batch loop, divergence handling, scheduling, checkpointing and
// hook execution. Models, objectives and optimizers are collaborators
// reached only through the interfaces below.
package train

import (
	"github.com/san-kum/trainlab/internal/tensor"
)

// Model is the trained collaborator. Inputs and outputs are nested
// containers of tensors; the engine never inspects their layout.
type Model interface {
	Name() string
	Device() tensor.Device
	Forward(inputs any) (any, error)
	Backward(outputGrad any) error
	Parameters() []*tensor.Parameter
	Epoch() int
	SetEpoch(epoch int)
	SetTraining(training bool)
}

// Objective turns outputs and targets into a scalar criterion, an
// output gradient and batched metric values. Clone must produce an
// independent deep copy so training and validation never share state.
type Objective interface {
	Update(outputs, targets any) error
	Criterion() *tensor.Tensor
	Gradient() any
	Metrics() map[string]*tensor.Tensor
	Reset()
	Clone() Objective
}

// Optimizer applies one descent step to the parameters. State exposes
// internal buffers (e.g. momentum) for checkpointing.
type Optimizer interface {
	Step(params []*tensor.Parameter) error
	SetLR(lr float64)
	LR() float64
	State() map[string][]float64
	LoadState(state map[string][]float64) error
}

// State tracks an orchestrator through its lifecycle. Terminated is
// terminal and irreversible.
type State uint8

const (
	Constructed State = iota
	Bound
	Training
	Terminated
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "Constructed"
	case Bound:
		return "Bound"
	case Training:
		return "Training"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

func zeroGrads(params []*tensor.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
