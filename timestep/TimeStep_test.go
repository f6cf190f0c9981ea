package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNew(t *testing.T) {
	obs := mat.NewVecDense(3, []float64{1, 2, 3})
	step := New(Mid, 0.5, 0.99, obs, 7)

	if step.StepType != Mid {
		t.Errorf("new: expected step type %v, got %v", Mid, step.StepType)
	}
	if step.Reward != 0.5 {
		t.Errorf("new: expected reward 0.5, got %v", step.Reward)
	}
	if step.Discount != 0.99 {
		t.Errorf("new: expected discount 0.99, got %v", step.Discount)
	}
	if step.Number != 7 {
		t.Errorf("new: expected step number 7, got %v", step.Number)
	}
	if step.Observation != obs {
		t.Error("new: observation should be the argument vector")
	}
	if step.End() != Nil {
		t.Errorf("new: expected end type %v, got %v", Nil, step.End())
	}
}

func TestStepTypePredicates(t *testing.T) {
	first := New(First, 0, 1, nil, 0)
	mid := New(Mid, 0, 1, nil, 1)
	last := New(Last, 0, 1, nil, 2)

	if !first.First() || first.Mid() || first.Last() {
		t.Error("first: predicates disagree with step type First")
	}
	if first.StepType.String() != "First" {
		t.Errorf("first: expected name First, got %v", first.StepType)
	}

	if mid.First() || !mid.Mid() || mid.Last() {
		t.Error("mid: predicates disagree with step type Mid")
	}

	if last.First() || last.Mid() || !last.Last() {
		t.Error("last: predicates disagree with step type Last")
	}
}

func TestSetEnd(t *testing.T) {
	step := New(Mid, 0, 1, nil, 3)

	step.SetEnd(Timeout)
	if step.End() != Timeout {
		t.Errorf("setEnd: expected end type %v, got %v", Timeout, step.End())
	}

	step.SetEnd(TerminalStateReached)
	if step.End() != TerminalStateReached {
		t.Errorf("setEnd: expected end type %v, got %v",
			TerminalStateReached, step.End())
	}
}
