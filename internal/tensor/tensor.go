package tensor

import (
	"fmt"
	"math"
)

// Device labels where a tensor lives. The engine treats it as an opaque
// placement tag; all arithmetic here runs on the host.
type Device string

const CPU Device = "cpu"

// Tensor is a dense row-major float64 array: flat data plus shape.
// An empty shape means a scalar.
type Tensor struct {
	Data   []float64
	Shape  []int
	device Device
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// New creates a tensor from data and shape. The data length must match
// the product of the shape dimensions.
func New(data []float64, shape ...int) (*Tensor, error) {
	if numElements(shape) != len(data) {
		return nil, fmt.Errorf("tensor: shape %v has %d elements, data has %d",
			shape, numElements(shape), len(data))
	}
	return &Tensor{Data: data, Shape: shape, device: CPU}, nil
}

// Zeros creates a zero-filled tensor with the given shape.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		Data:   make([]float64, numElements(shape)),
		Shape:  append([]int(nil), shape...),
		device: CPU,
	}
}

// Scalar creates a 0-dimensional tensor holding a single value.
func Scalar(v float64) *Tensor {
	return &Tensor{Data: []float64{v}, Shape: nil, device: CPU}
}

func (t *Tensor) Device() Device { return t.device }

func (t *Tensor) Numel() int { return len(t.Data) }

// IsScalar reports whether t has no batch dimension.
func (t *Tensor) IsScalar() bool { return len(t.Shape) == 0 }

// Item returns the value of a scalar tensor.
func (t *Tensor) Item() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	return t.Data[0]
}

func (t *Tensor) Clone() *Tensor {
	c := &Tensor{
		Data:   make([]float64, len(t.Data)),
		Shape:  append([]int(nil), t.Shape...),
		device: t.device,
	}
	copy(c.Data, t.Data)
	return c
}

// Detach returns a host-resident copy with no links back to t.
func (t *Tensor) Detach() *Tensor {
	c := t.Clone()
	c.device = CPU
	return c
}

// To returns a copy of t tagged with the target device. Data stays on
// the host; the tag is what the engine and checkpoints care about.
func (t *Tensor) To(device Device) *Tensor {
	c := t.Clone()
	c.device = device
	return c
}

// Sum returns the total over all elements, reducing the batch dimension
// and any trailing dimensions together.
func (t *Tensor) Sum() float64 {
	total := 0.0
	for _, v := range t.Data {
		total += v
	}
	return total
}

func (t *Tensor) Mean() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	return t.Sum() / float64(len(t.Data))
}

// IsFinite reports whether every element is a real number.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Scale multiplies every element by factor, returning a new tensor.
func (t *Tensor) Scale(factor float64) *Tensor {
	c := t.Clone()
	for i := range c.Data {
		c.Data[i] *= factor
	}
	return c
}

// Sub returns t - other element-wise. Shapes must match.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	if len(t.Data) != len(other.Data) {
		return nil, fmt.Errorf("tensor: size mismatch %v vs %v", t.Shape, other.Shape)
	}
	c := t.Clone()
	for i := range c.Data {
		c.Data[i] -= other.Data[i]
	}
	return c, nil
}

// AddInPlace accumulates other into t element-wise. Shapes must match.
func (t *Tensor) AddInPlace(other *Tensor) error {
	if len(t.Data) != len(other.Data) {
		return fmt.Errorf("tensor: size mismatch %v vs %v", t.Shape, other.Shape)
	}
	for i := range t.Data {
		t.Data[i] += other.Data[i]
	}
	return nil
}

// MatMul computes the [M,K]x[K,N] product of two 2-D tensors.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("tensor: matmul needs 2-D operands, got %v and %v",
			a.Shape, b.Shape)
	}
	m, k := a.Shape[0], a.Shape[1]
	k2, n := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("tensor: matmul inner dimensions %d and %d differ", k, k2)
	}
	out := Zeros(m, n)
	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := a.Data[i*k+p]
			if av == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out.Data[i*n+j] += av * b.Data[p*n+j]
			}
		}
	}
	return out, nil
}

// Equal reports element-wise and shape equality (exact comparison).
func Equal(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}
