package nn

import (
	"math"
	"testing"

	"github.com/san-kum/trainlab/internal/tensor"
)

func TestLinearForward(t *testing.T) {
	model := NewLinear("lin", 2, 1, nil)
	model.Parameters()[0].Value.Data = []float64{2, 3} // weight [2,1]
	model.Parameters()[1].Value.Data = []float64{1}    // bias

	x, _ := tensor.New([]float64{1, 1, 2, 0}, 2, 2)
	out, err := model.Forward(x)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	y := out.(*tensor.Tensor)
	if y.Data[0] != 6 || y.Data[1] != 5 {
		t.Errorf("expected [6 5], got %v", y.Data)
	}
}

func TestLinearBackwardGradients(t *testing.T) {
	model := NewLinear("lin", 1, 1, nil)
	model.SetTraining(true)

	x, _ := tensor.New([]float64{1, 2}, 2, 1)
	if _, err := model.Forward(x); err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	g, _ := tensor.New([]float64{0.5, 1}, 2, 1)
	if err := model.Backward(g); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	// dW = 1*0.5 + 2*1 = 2.5; db = 1.5
	if got := model.Parameters()[0].Grad.Data[0]; got != 2.5 {
		t.Errorf("expected weight grad 2.5, got %f", got)
	}
	if got := model.Parameters()[1].Grad.Data[0]; got != 1.5 {
		t.Errorf("expected bias grad 1.5, got %f", got)
	}
}

func TestBackwardBeforeForward(t *testing.T) {
	model := NewLinear("lin", 1, 1, nil)
	g, _ := tensor.New([]float64{1}, 1, 1)
	if err := model.Backward(g); err == nil {
		t.Fatal("expected error for backward before forward")
	}
}

func TestMSE(t *testing.T) {
	obj := NewMSE()
	y, _ := tensor.New([]float64{1, 3}, 2, 1)
	target, _ := tensor.New([]float64{0, 1}, 2, 1)
	if err := obj.Update(y, target); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	// errors 1 and 4, mean 2.5
	if got := obj.Criterion().Item(); got != 2.5 {
		t.Errorf("expected criterion 2.5, got %f", got)
	}
	grad := obj.Gradient().(*tensor.Tensor)
	if grad.Data[0] != 1 || grad.Data[1] != 2 {
		t.Errorf("expected gradient [1 2], got %v", grad.Data)
	}
	perSample := obj.Metrics()["criterion"]
	if perSample.Shape[0] != 2 {
		t.Errorf("per-sample criterion should be batched, got shape %v", perSample.Shape)
	}
	if math.Abs(obj.Metrics()["RMSE"].Data[1]-2) > 1e-12 {
		t.Errorf("expected RMSE 2 for second sample, got %f", obj.Metrics()["RMSE"].Data[1])
	}
}

func TestMSECloneIsIndependent(t *testing.T) {
	obj := NewMSE()
	y, _ := tensor.New([]float64{1}, 1, 1)
	target, _ := tensor.New([]float64{0}, 1, 1)
	if err := obj.Update(y, target); err != nil {
		t.Fatal(err)
	}
	clone := obj.Clone()
	if clone.Criterion() != nil {
		t.Error("clone must not share calculated state")
	}
	if obj.Criterion() == nil {
		t.Error("cloning reset the original")
	}
}

func TestSGDStepWithMomentum(t *testing.T) {
	opt := NewSGD(0.1, 0.9)
	p := tensor.NewParameter("w", tensor.Zeros(1))
	p.Grad.Data[0] = 1

	if err := opt.Step([]*tensor.Parameter{p}); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if math.Abs(p.Value.Data[0]+0.1) > 1e-12 {
		t.Errorf("expected -0.1 after first step, got %f", p.Value.Data[0])
	}

	// second step: velocity = 0.9*1 + 1 = 1.9
	if err := opt.Step([]*tensor.Parameter{p}); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Value.Data[0]+0.29) > 1e-12 {
		t.Errorf("expected -0.29 after second step, got %f", p.Value.Data[0])
	}
}

func TestSGDStateRoundTrip(t *testing.T) {
	opt := NewSGD(0.1, 0.9)
	p := tensor.NewParameter("w", tensor.Zeros(1))
	p.Grad.Data[0] = 1
	if err := opt.Step([]*tensor.Parameter{p}); err != nil {
		t.Fatal(err)
	}

	saved := opt.State()
	restored := NewSGD(0.1, 0.9)
	if err := restored.LoadState(saved); err != nil {
		t.Fatal(err)
	}
	if restored.velocity["w"][0] != 1 {
		t.Errorf("expected restored velocity 1, got %f", restored.velocity["w"][0])
	}

	// mutating the exported state must not touch the optimizer
	saved["w"][0] = 99
	if opt.velocity["w"][0] == 99 {
		t.Error("State returned a shared buffer")
	}
}
