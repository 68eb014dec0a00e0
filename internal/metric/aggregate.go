// Package metric implements the streaming weighted-mean aggregation of
// batched metric values across an epoch.
package metric

import (
	"errors"
	"fmt"
	"sort"
	"unicode"

	"github.com/san-kum/trainlab/internal/tensor"
)

// ErrNotBatched indicates a metric value without a batch dimension.
// This is an integration bug, not a recoverable condition.
var ErrNotBatched = errors.New("metric: value has no batch dimension")

// Aggregate accumulates running sums and counts per metric name.
// Counts never decrease within a pass; the mean is sum/count.
type Aggregate struct {
	sums   map[string]float64
	counts map[string]int64
}

func NewAggregate() *Aggregate {
	return &Aggregate{
		sums:   make(map[string]float64),
		counts: make(map[string]int64),
	}
}

// Update folds one batched value into the aggregate. The value must
// carry a batch dimension; its sum is reduced over every element and
// its element count weights the final mean.
func (a *Aggregate) Update(name string, value *tensor.Tensor) error {
	if value.IsScalar() {
		return fmt.Errorf("%w: %q has shape %v", ErrNotBatched, name, value.Shape)
	}
	key := formatKey(name)
	a.sums[key] += value.Sum()
	a.counts[key] += int64(value.Numel())
	return nil
}

// Merge folds other into a key-wise, unioning unseen keys. Merging is
// associative and commutative, so partial aggregates from sub-batches
// reduce to the same mean in any order.
func (a *Aggregate) Merge(other *Aggregate) {
	for key, sum := range other.sums {
		a.sums[key] += sum
	}
	for key, count := range other.counts {
		a.counts[key] += count
	}
}

// Reduce returns the mean per metric name.
func (a *Aggregate) Reduce() map[string]float64 {
	out := make(map[string]float64, len(a.sums))
	for key, sum := range a.sums {
		out[key] = sum / float64(a.counts[key])
	}
	return out
}

// Reset clears all accumulated state for a new pass.
func (a *Aggregate) Reset() {
	a.sums = make(map[string]float64)
	a.counts = make(map[string]int64)
}

func (a *Aggregate) Clone() *Aggregate {
	c := NewAggregate()
	c.Merge(a)
	return c
}

// Len returns the number of tracked metric names.
func (a *Aggregate) Len() int { return len(a.sums) }

// Keys returns the tracked metric names in sorted order.
func (a *Aggregate) Keys() []string {
	keys := make([]string, 0, len(a.sums))
	for key := range a.sums {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// formatKey upper-cases the first rune only, leaving acronyms intact.
func formatKey(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return name
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
