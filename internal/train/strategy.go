package train

import (
	"github.com/san-kum/trainlab/internal/nested"
	"github.com/san-kum/trainlab/internal/tensor"
)

// StepStrategy isolates the numeric-precision technique from the epoch
// loop: it scales the gradient seed before backward, owns the optimizer
// step, and adjusts itself after every batch.
type StepStrategy interface {
	Scale(outputGrad any) (any, error)
	Step(opt Optimizer, params []*tensor.Parameter) error
	Update()
}

// Standard steps the optimizer directly with unscaled gradients.
type Standard struct{}

func (Standard) Scale(outputGrad any) (any, error) { return outputGrad, nil }

func (Standard) Step(opt Optimizer, params []*tensor.Parameter) error {
	return opt.Step(params)
}

func (Standard) Update() {}

const (
	defaultScale   = 65536.0
	growthFactor   = 2.0
	backoffFactor  = 0.5
	growthInterval = 2000
)

// LossScaling multiplies the gradient seed by a running scale factor so
// small gradients survive reduced-precision computation, unscales
// before stepping, skips the step on overflow and backs the factor off.
type LossScaling struct {
	scale     float64
	goodSteps int
}

func NewLossScaling() *LossScaling {
	return &LossScaling{scale: defaultScale}
}

func (s *LossScaling) Scale(outputGrad any) (any, error) {
	return nested.Apply(outputGrad, func(t *tensor.Tensor) *tensor.Tensor {
		return t.Scale(s.scale)
	})
}

func (s *LossScaling) Step(opt Optimizer, params []*tensor.Parameter) error {
	overflow := false
	for _, p := range params {
		if !p.Grad.IsFinite() {
			overflow = true
			break
		}
	}
	if overflow {
		s.scale *= backoffFactor
		s.goodSteps = 0
		return nil
	}

	inv := 1 / s.scale
	for _, p := range params {
		for i := range p.Grad.Data {
			p.Grad.Data[i] *= inv
		}
	}
	s.goodSteps++
	return opt.Step(params)
}

func (s *LossScaling) Update() {
	if s.goodSteps >= growthInterval {
		s.scale *= growthFactor
		s.goodSteps = 0
	}
}

// CurrentScale exposes the running factor, mainly for tests.
func (s *LossScaling) CurrentScale() float64 { return s.scale }
