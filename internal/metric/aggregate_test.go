package metric

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/trainlab/internal/tensor"
)

func batched(t *testing.T, values ...float64) *tensor.Tensor {
	t.Helper()
	ts, err := tensor.New(values, len(values))
	if err != nil {
		t.Fatalf("tensor: %v", err)
	}
	return ts
}

func TestUpdateAndReduce(t *testing.T) {
	agg := NewAggregate()
	if err := agg.Update("loss", batched(t, 1, 2, 3)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := agg.Update("loss", batched(t, 5)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	reduced := agg.Reduce()
	if got := reduced["Loss"]; got != 2.75 {
		t.Errorf("expected mean 2.75, got %f", got)
	}
}

func TestUpdateScalarRejected(t *testing.T) {
	agg := NewAggregate()
	err := agg.Update("loss", tensor.Scalar(1))
	if !errors.Is(err, ErrNotBatched) {
		t.Fatalf("expected ErrNotBatched, got %v", err)
	}
}

func TestKeyFormattingKeepsAcronyms(t *testing.T) {
	agg := NewAggregate()
	if err := agg.Update("mseLoss", batched(t, 1)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := agg.Update("RMSE", batched(t, 1)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	reduced := agg.Reduce()
	if _, ok := reduced["MseLoss"]; !ok {
		t.Errorf("expected key MseLoss, got %v", agg.Keys())
	}
	if _, ok := reduced["RMSE"]; !ok {
		t.Errorf("expected key RMSE untouched, got %v", agg.Keys())
	}
}

func TestMergeUnionsKeys(t *testing.T) {
	a := NewAggregate()
	b := NewAggregate()
	if err := a.Update("loss", batched(t, 2, 4)); err != nil {
		t.Fatal(err)
	}
	if err := b.Update("accuracy", batched(t, 1)); err != nil {
		t.Fatal(err)
	}
	a.Merge(b)
	reduced := a.Reduce()
	if reduced["Loss"] != 3 {
		t.Errorf("expected Loss 3, got %f", reduced["Loss"])
	}
	if reduced["Accuracy"] != 1 {
		t.Errorf("expected Accuracy 1, got %f", reduced["Accuracy"])
	}
}

// Splitting a value sequence into arbitrary sub-batches and merging the
// partial aggregates must reduce to the exact same mean as a single
// aggregate over the whole sequence, independent of order.
func TestMergeAssociativity(t *testing.T) {
	values := []float64{0.5, 1.5, 2.0, 3.5, 4.0, 8.0, 13.0}
	whole := NewAggregate()
	if err := whole.Update("loss", batched(t, values...)); err != nil {
		t.Fatal(err)
	}
	want := whole.Reduce()["Loss"]

	splits := [][]int{
		{1, 6},
		{3, 4},
		{2, 2, 3},
		{1, 1, 1, 1, 1, 1, 1},
	}
	for _, split := range splits {
		parts := make([]*Aggregate, 0, len(split))
		offset := 0
		for _, size := range split {
			part := NewAggregate()
			if err := part.Update("loss", batched(t, values[offset:offset+size]...)); err != nil {
				t.Fatal(err)
			}
			parts = append(parts, part)
			offset += size
		}
		// merge right-to-left to exercise a different association
		merged := NewAggregate()
		for i := len(parts) - 1; i >= 0; i-- {
			merged.Merge(parts[i])
		}
		if got := merged.Reduce()["Loss"]; math.Abs(got-want) > 1e-12 {
			t.Errorf("split %v: expected %v, got %v", split, want, got)
		}
	}
}

func TestResetClears(t *testing.T) {
	agg := NewAggregate()
	if err := agg.Update("loss", batched(t, 1)); err != nil {
		t.Fatal(err)
	}
	agg.Reset()
	if agg.Len() != 0 {
		t.Errorf("expected empty aggregate after reset, got %d keys", agg.Len())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewAggregate()
	if err := a.Update("loss", batched(t, 1, 3)); err != nil {
		t.Fatal(err)
	}
	c := a.Clone()
	if err := c.Update("loss", batched(t, 100)); err != nil {
		t.Fatal(err)
	}
	if a.Reduce()["Loss"] != 2 {
		t.Error("clone shares state with original")
	}
}
