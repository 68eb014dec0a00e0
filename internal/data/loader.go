// Package data defines the loader contract used by the engines and an
// in-memory implementation for tabular datasets.
package data

import (
	"fmt"
	"io"

	"github.com/san-kum/trainlab/internal/tensor"
)

// Batch is one (inputs, targets) pair. Both sides are nested containers
// of tensors; for the common tabular case they are plain [B,d] tensors.
type Batch struct {
	Inputs  any
	Targets any
}

// Loader yields batches in a fixed order. Next returns io.EOF when the
// pass is complete; Reset rewinds for the next pass. A loader may
// prefetch in the background, the engines block on Next only.
type Loader interface {
	Reset()
	Next() (Batch, error)
	Len() int
	BatchSize() int
	NumSamples() int
}

// SliceLoader batches in-memory feature and target rows. The final
// batch may be short; order is always row order.
type SliceLoader struct {
	features  [][]float64
	targets   [][]float64
	batchSize int
	cursor    int
}

func NewSliceLoader(features, targets [][]float64, batchSize int) (*SliceLoader, error) {
	if len(features) != len(targets) {
		return nil, fmt.Errorf("data: %d feature rows vs %d target rows",
			len(features), len(targets))
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("data: empty dataset")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("data: batch size must be positive, got %d", batchSize)
	}
	return &SliceLoader{
		features:  features,
		targets:   targets,
		batchSize: batchSize,
	}, nil
}

func (l *SliceLoader) Reset() { l.cursor = 0 }

func (l *SliceLoader) Next() (Batch, error) {
	if l.cursor >= len(l.features) {
		return Batch{}, io.EOF
	}
	end := l.cursor + l.batchSize
	if end > len(l.features) {
		end = len(l.features)
	}
	inputs, err := stack(l.features[l.cursor:end])
	if err != nil {
		return Batch{}, err
	}
	targets, err := stack(l.targets[l.cursor:end])
	if err != nil {
		return Batch{}, err
	}
	l.cursor = end
	return Batch{Inputs: inputs, Targets: targets}, nil
}

func (l *SliceLoader) Len() int {
	return (len(l.features) + l.batchSize - 1) / l.batchSize
}

func (l *SliceLoader) BatchSize() int { return l.batchSize }

func (l *SliceLoader) NumSamples() int { return len(l.features) }

// stack turns rows into one [B,d] tensor.
func stack(rows [][]float64) (*tensor.Tensor, error) {
	width := len(rows[0])
	flat := make([]float64, 0, len(rows)*width)
	for _, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("data: ragged row of width %d, expected %d",
				len(row), width)
		}
		flat = append(flat, row...)
	}
	return tensor.New(flat, len(rows), width)
}
