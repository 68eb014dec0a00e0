package tensor

// Parameter couples a trainable value with its gradient accumulator.
type Parameter struct {
	Name  string
	Value *Tensor
	Grad  *Tensor
}

// NewParameter wraps value as a named parameter with a zeroed gradient.
func NewParameter(name string, value *Tensor) *Parameter {
	return &Parameter{
		Name:  name,
		Value: value,
		Grad:  Zeros(value.Shape...),
	}
}

// ZeroGrad clears the accumulated gradient in place.
func (p *Parameter) ZeroGrad() {
	for i := range p.Grad.Data {
		p.Grad.Data[i] = 0
	}
}

// To moves the parameter value to the target device. The gradient
// buffer is rebuilt on the host.
func (p *Parameter) To(device Device) {
	p.Value = p.Value.To(device)
	p.Grad = Zeros(p.Value.Shape...)
}
