package train

import (
	"math"
	"testing"
)

func TestConstantSchedule(t *testing.T) {
	s := Constant()
	for _, epoch := range []int{0, 1, 100} {
		if got := s(0.01, epoch); got != 0.01 {
			t.Errorf("epoch %d: expected 0.01, got %f", epoch, got)
		}
	}
}

func TestExponentialSchedule(t *testing.T) {
	s := Exponential(0.5, 0)
	if got := s(1.0, 0); got != 1.0 {
		t.Errorf("epoch 0: expected 1.0, got %f", got)
	}
	if got := s(1.0, 2); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("epoch 2: expected 0.25, got %f", got)
	}
}

func TestExponentialScheduleFloor(t *testing.T) {
	s := Exponential(0.1, 0.05)
	if got := s(1.0, 10); got != 0.05 {
		t.Errorf("expected floor 0.05, got %f", got)
	}
}

func TestCosineSchedule(t *testing.T) {
	s := Cosine(10, 0.1)
	if got := s(1.0, 0); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("epoch 0: expected 1.0, got %f", got)
	}
	mid := s(1.0, 5)
	if mid >= 1.0 || mid <= 0.1 {
		t.Errorf("mid-decay lr %f not between floor and base", mid)
	}
	if got := s(1.0, 10); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("end of decay: expected 0.1, got %f", got)
	}
	if got := s(1.0, 20); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("past decay: expected 0.1, got %f", got)
	}
}
