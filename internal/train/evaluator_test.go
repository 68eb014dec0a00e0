package train_test

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/trainlab/internal/data"
	"github.com/san-kum/trainlab/internal/event"
	"github.com/san-kum/trainlab/internal/nn"
	"github.com/san-kum/trainlab/internal/tensor"
	"github.com/san-kum/trainlab/internal/train"
)

func TestEvaluatorRun(t *testing.T) {
	exp, rec, model, loader := newLineFixture(t)
	eval, err := train.NewEvaluator(model, exp, train.EvalConfig{
		Loader:    loader,
		Objective: nn.NewMSE(),
	})
	if err != nil {
		t.Fatal(err)
	}

	values, err := eval.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, ok := values["Criterion"]; !ok {
		t.Error("expected a Criterion metric")
	}

	events := metricsEvents(rec, "test")
	if len(events) != 1 {
		t.Fatalf("expected 1 test metrics event, got %d", len(events))
	}
	var started, ended bool
	for _, e := range rec.Events {
		switch e.(type) {
		case event.EvalStart:
			started = true
		case event.EvalEnd:
			ended = true
		}
	}
	if !started || !ended {
		t.Error("missing eval start or end event")
	}
}

func TestEvaluatorDoesNotMutateParameters(t *testing.T) {
	exp, _, model, loader := newLineFixture(t)
	model.Parameters()[0].Value.Data[0] = 0.5

	before := make([]float64, 0)
	for _, p := range model.Parameters() {
		before = append(before, append([]float64(nil), p.Value.Data...)...)
	}

	eval, err := train.NewEvaluator(model, exp, train.EvalConfig{
		Loader:    loader,
		Objective: nn.NewMSE(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eval.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	after := make([]float64, 0)
	for _, p := range model.Parameters() {
		after = append(after, p.Value.Data...)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("parameter %d changed during evaluation", i)
		}
	}
}

func TestEvaluatorStoresOutputsUpToCap(t *testing.T) {
	exp, rec, model, _ := newLineFixture(t)
	loader, err := data.NewSliceLoader(
		[][]float64{{1}, {2}, {3}, {4}, {5}, {6}},
		[][]float64{{2}, {4}, {6}, {8}, {10}, {12}},
		2,
	)
	if err != nil {
		t.Fatal(err)
	}

	eval, err := train.NewEvaluator(model, exp, train.EvalConfig{
		Loader:           loader,
		Objective:        nn.NewMSE(),
		StoreOutputs:     true,
		MaxStoredOutputs: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eval.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := eval.Outputs().Len(); got != 2 {
		t.Errorf("expected 2 stored outputs, got %d", got)
	}
	for _, e := range rec.Events {
		if w, ok := e.(event.Warning); ok {
			t.Errorf("dropping beyond the cap must be silent, got warning %q", w.Message)
		}
	}

	for _, item := range eval.Outputs().Items() {
		out, ok := item.(*tensor.Tensor)
		if !ok {
			t.Fatalf("stored output is %T, not a tensor", item)
		}
		if out.Device() != tensor.CPU {
			t.Error("stored outputs must live on the host")
		}
	}
}

// opaqueModel returns outputs the nested transform cannot walk.
type opaqueModel struct {
	*nn.Linear
}

func (m opaqueModel) Forward(any) (any, error) {
	return make(chan int), nil
}

// anyObjective accepts any outputs and reports a constant batched metric.
type anyObjective struct{}

func (anyObjective) Update(outputs, targets any) error { return nil }
func (anyObjective) Criterion() *tensor.Tensor         { return tensor.Scalar(0) }
func (anyObjective) Gradient() any                     { return tensor.Scalar(0) }
func (anyObjective) Reset()                            {}
func (anyObjective) Clone() train.Objective            { return anyObjective{} }

func (anyObjective) Metrics() map[string]*tensor.Tensor {
	batched, _ := tensor.New([]float64{1, 1}, 2)
	return map[string]*tensor.Tensor{"criterion": batched}
}

func TestEvaluatorWarnsOnUnstorableOutputs(t *testing.T) {
	exp, rec, model, loader := newLineFixture(t)
	eval, err := train.NewEvaluator(opaqueModel{model}, exp, train.EvalConfig{
		Loader:       loader,
		Objective:    anyObjective{},
		StoreOutputs: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eval.Run(context.Background()); err != nil {
		t.Fatalf("an unstorable output must not fail the pass: %v", err)
	}
	if eval.Outputs().Len() != 0 {
		t.Error("unstorable outputs must not be buffered")
	}

	var warned bool
	for _, e := range rec.Events {
		if _, ok := e.(event.Warning); ok {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning event")
	}
}

func TestEvaluatorRejectsOverlappingRun(t *testing.T) {
	exp, _, model, loader := newLineFixture(t)

	reentrant := &reentrantObjective{}
	eval, err := train.NewEvaluator(model, exp, train.EvalConfig{
		Loader:    loader,
		Objective: reentrant,
	})
	if err != nil {
		t.Fatal(err)
	}
	reentrant.eval = eval

	if _, err := eval.Run(context.Background()); err != nil {
		t.Fatalf("outer run failed: %v", err)
	}
	if !errors.Is(reentrant.innerErr, train.ErrRunning) {
		t.Errorf("expected ErrRunning from the overlapping run, got %v", reentrant.innerErr)
	}

	if _, err := eval.Run(context.Background()); err != nil {
		t.Fatalf("run after an idle engine must succeed: %v", err)
	}
}

// reentrantObjective starts a second pass from inside the first one.
type reentrantObjective struct {
	eval     *train.Evaluator
	innerErr error
	fired    bool
}

func (r *reentrantObjective) Update(outputs, targets any) error {
	if !r.fired {
		r.fired = true
		_, r.innerErr = r.eval.Run(context.Background())
	}
	return nil
}

func (r *reentrantObjective) Criterion() *tensor.Tensor { return tensor.Scalar(0) }
func (r *reentrantObjective) Gradient() any             { return tensor.Scalar(0) }
func (r *reentrantObjective) Reset()                    {}

func (r *reentrantObjective) Metrics() map[string]*tensor.Tensor {
	batched, _ := tensor.New([]float64{0, 0}, 2)
	return map[string]*tensor.Tensor{"criterion": batched}
}

func (r *reentrantObjective) Clone() train.Objective { return r }
