package nn

import (
	"fmt"
	"math"

	"github.com/san-kum/trainlab/internal/tensor"
	"github.com/san-kum/trainlab/internal/train"
)

// MSE is the mean-squared-error objective. The criterion is the mean
// over every output element; metrics carry per-sample values so the
// aggregator can weight them by batch size.
type MSE struct {
	criterion *tensor.Tensor
	grad      *tensor.Tensor
	metrics   map[string]*tensor.Tensor
}

func NewMSE() *MSE { return &MSE{} }

func (m *MSE) Update(outputs, targets any) error {
	y, ok := outputs.(*tensor.Tensor)
	if !ok {
		return fmt.Errorf("nn: mse expects tensor outputs, got %T", outputs)
	}
	t, ok := targets.(*tensor.Tensor)
	if !ok {
		return fmt.Errorf("nn: mse expects tensor targets, got %T", targets)
	}
	diff, err := y.Sub(t)
	if err != nil {
		return err
	}

	batch := diff.Shape[0]
	width := diff.Numel() / batch
	perSample := tensor.Zeros(batch)
	total := 0.0
	for b := 0; b < batch; b++ {
		rowSum := 0.0
		for i := 0; i < width; i++ {
			v := diff.Data[b*width+i]
			rowSum += v * v
		}
		perSample.Data[b] = rowSum / float64(width)
		total += rowSum
	}

	m.criterion = tensor.Scalar(total / float64(diff.Numel()))
	m.grad = diff.Scale(2 / float64(diff.Numel()))

	rmse := perSample.Clone()
	for i := range rmse.Data {
		rmse.Data[i] = math.Sqrt(rmse.Data[i])
	}
	m.metrics = map[string]*tensor.Tensor{
		"criterion": perSample,
		"RMSE":      rmse,
	}
	return nil
}

func (m *MSE) Criterion() *tensor.Tensor { return m.criterion }

func (m *MSE) Gradient() any { return m.grad }

func (m *MSE) Metrics() map[string]*tensor.Tensor { return m.metrics }

func (m *MSE) Reset() {
	m.criterion = nil
	m.grad = nil
	m.metrics = nil
}

// Clone returns a fresh objective with no shared accumulation state.
func (m *MSE) Clone() train.Objective { return NewMSE() }
