// Package nn provides reference collaborators for the engines: a
// linear model, a mean-squared-error objective and SGD. The engines
// only ever see them through the train package interfaces.
package nn

import (
	"fmt"
	"math/rand"

	"github.com/san-kum/trainlab/internal/tensor"
)

// Linear computes y = xW + b over [B,in] input batches.
type Linear struct {
	name     string
	device   tensor.Device
	weight   *tensor.Parameter // [in,out]
	bias     *tensor.Parameter // [1,out]
	epoch    int
	training bool

	lastInputs *tensor.Tensor
}

// NewLinear creates a linear model with small random weights from rng.
// A nil rng leaves the parameters at zero.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	weight := tensor.Zeros(in, out)
	bias := tensor.Zeros(1, out)
	if rng != nil {
		for i := range weight.Data {
			weight.Data[i] = rng.NormFloat64() * 0.1
		}
	}
	return &Linear{
		name:   name,
		device: tensor.CPU,
		weight: tensor.NewParameter("weight", weight),
		bias:   tensor.NewParameter("bias", bias),
	}
}

func (l *Linear) Name() string          { return l.name }
func (l *Linear) Device() tensor.Device { return l.device }
func (l *Linear) Epoch() int            { return l.epoch }
func (l *Linear) SetEpoch(epoch int)    { l.epoch = epoch }

func (l *Linear) SetTraining(training bool) { l.training = training }

func (l *Linear) Parameters() []*tensor.Parameter {
	return []*tensor.Parameter{l.weight, l.bias}
}

// SetDevice retags the model and its parameters.
func (l *Linear) SetDevice(device tensor.Device) {
	l.device = device
	l.weight.To(device)
	l.bias.To(device)
}

func (l *Linear) Forward(inputs any) (any, error) {
	x, ok := inputs.(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("nn: linear expects a tensor input, got %T", inputs)
	}
	out, err := tensor.MatMul(x, l.weight.Value)
	if err != nil {
		return nil, err
	}
	cols := l.bias.Value.Shape[1]
	for i := range out.Data {
		out.Data[i] += l.bias.Value.Data[i%cols]
	}
	if l.training {
		l.lastInputs = x
	}
	return out, nil
}

// Backward accumulates parameter gradients from the output gradient of
// the last training forward pass.
func (l *Linear) Backward(outputGrad any) error {
	g, ok := outputGrad.(*tensor.Tensor)
	if !ok {
		return fmt.Errorf("nn: linear expects a tensor gradient, got %T", outputGrad)
	}
	if l.lastInputs == nil {
		return fmt.Errorf("nn: backward called before a training forward pass")
	}
	x := l.lastInputs
	batch, in := x.Shape[0], x.Shape[1]
	out := l.weight.Value.Shape[1]
	if g.Shape[0] != batch || g.Shape[1] != out {
		return fmt.Errorf("nn: gradient shape %v does not match output [%d,%d]",
			g.Shape, batch, out)
	}

	// dW[i,j] = sum_b x[b,i] * g[b,j]; db[j] = sum_b g[b,j]
	for b := 0; b < batch; b++ {
		for j := 0; j < out; j++ {
			gv := g.Data[b*out+j]
			l.bias.Grad.Data[j] += gv
			for i := 0; i < in; i++ {
				l.weight.Grad.Data[i*out+j] += x.Data[b*in+i] * gv
			}
		}
	}
	return nil
}
