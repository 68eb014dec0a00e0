package nn

import (
	"fmt"

	"github.com/san-kum/trainlab/internal/tensor"
)

// SGD is stochastic gradient descent with optional momentum. Velocity
// buffers are the optimizer state persisted in checkpoints.
type SGD struct {
	lr       float64
	momentum float64
	velocity map[string][]float64
}

func NewSGD(lr, momentum float64) *SGD {
	return &SGD{
		lr:       lr,
		momentum: momentum,
		velocity: make(map[string][]float64),
	}
}

func (s *SGD) SetLR(lr float64) { s.lr = lr }
func (s *SGD) LR() float64      { return s.lr }

func (s *SGD) Step(params []*tensor.Parameter) error {
	for _, p := range params {
		if p.Value.Numel() != p.Grad.Numel() {
			return fmt.Errorf("nn: parameter %q has %d values but %d gradients",
				p.Name, p.Value.Numel(), p.Grad.Numel())
		}
		if s.momentum == 0 {
			for i := range p.Value.Data {
				p.Value.Data[i] -= s.lr * p.Grad.Data[i]
			}
			continue
		}
		v, ok := s.velocity[p.Name]
		if !ok {
			v = make([]float64, p.Value.Numel())
			s.velocity[p.Name] = v
		}
		for i := range p.Value.Data {
			v[i] = s.momentum*v[i] + p.Grad.Data[i]
			p.Value.Data[i] -= s.lr * v[i]
		}
	}
	return nil
}

// State exposes the velocity buffers for checkpointing.
func (s *SGD) State() map[string][]float64 {
	out := make(map[string][]float64, len(s.velocity))
	for name, v := range s.velocity {
		out[name] = append([]float64(nil), v...)
	}
	return out
}

func (s *SGD) LoadState(state map[string][]float64) error {
	s.velocity = make(map[string][]float64, len(state))
	for name, v := range state {
		s.velocity[name] = append([]float64(nil), v...)
	}
	return nil
}
