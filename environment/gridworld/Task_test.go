package gridworld

import (
	"math"
	"testing"

	ts "github.com/samuelfneumann/gogrid/timestep"
	"gonum.org/v1/gonum/mat"
)

// testTask returns a ReachGoal task registered on a 9 x 9 layout with
// a single obstacle at (4, 4), the goal at (8, 8), and the start at
// (0, 0)
func testTask(t *testing.T, cutoff int) *ReachGoal {
	t.Helper()

	layout, err := NewLayout(9, 9, []Cell{{4, 4}}, Cell{8, 8}, Cell{0, 0})
	if err != nil {
		t.Fatalf("newLayout: %v", err)
	}

	task := NewReachGoal(cutoff).(*ReachGoal)
	task.Register(layout)
	return task
}

func position(c Cell) *mat.VecDense {
	return mat.NewVecDense(2, []float64{float64(c.X), float64(c.Y)})
}

func action(a int) *mat.VecDense {
	return mat.NewVecDense(1, []float64{float64(a)})
}

func TestReachGoalStart(t *testing.T) {
	task := testTask(t, 100)

	start := task.Start()
	if start.Len() != 2 || start.AtVec(0) != 0 || start.AtVec(1) != 0 {
		t.Errorf("start: expected (0, 0), got %v", start.RawVector().Data)
	}
}

func TestReachGoalStartUnregistered(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("start: expected a panic when no layout is registered")
		}
	}()

	NewReachGoal(100).Start()
}

func TestReachGoalRewards(t *testing.T) {
	task := testTask(t, 100)

	tests := []struct {
		name   string
		state  Cell
		action int
		next   Cell
		reward float64
	}{
		// No obstacle near (1, 0), so shaping is undiluted
		{"approach", Cell{0, 0}, Right, Cell{1, 0}, ApproachReward},
		{"retreat", Cell{1, 0}, Left, Cell{0, 0}, RetreatReward},
		{"idle", Cell{1, 0}, Stay, Cell{1, 0}, IdleReward},

		// A directional action that does not move was clamped at the
		// boundary
		{"wall", Cell{0, 0}, Left, Cell{0, 0}, IdleReward + WallReward},

		// Approaching the goal right beside the obstacle costs
		// proximity
		{"proximity", Cell{3, 5}, Right, Cell{4, 5},
			ApproachReward - ProximityWeight*0.8},

		{"goal", Cell{8, 7}, Down, Cell{8, 8}, GoalReward},
		{"obstacle", Cell{3, 4}, Right, Cell{4, 4}, ObstacleReward},
	}

	for _, test := range tests {
		reward := task.GetReward(position(test.state), action(test.action),
			position(test.next))
		if math.Abs(reward-test.reward) > 1e-12 {
			t.Errorf("getReward: %v: expected %v, got %v", test.name,
				test.reward, reward)
		}
	}
}

func TestReachGoalEnd(t *testing.T) {
	task := testTask(t, 100)

	step := ts.New(ts.Mid, 0, 1, position(Cell{3, 3}), 5)
	if task.End(&step) {
		t.Error("end: episode ended in an ordinary state")
	}
	if step.StepType != ts.Mid || step.End() != ts.Nil {
		t.Error("end: timestep modified in an ordinary state")
	}

	step = ts.New(ts.Mid, 0, 1, position(Cell{8, 8}), 6)
	if !task.End(&step) {
		t.Error("end: episode did not end at the goal")
	}
	if step.StepType != ts.Last || step.End() != ts.TerminalStateReached {
		t.Errorf("end: expected a terminal timestep at the goal, got %v "+
			"with end type %v", step.StepType, step.End())
	}

	step = ts.New(ts.Mid, 0, 1, position(Cell{4, 4}), 7)
	if !task.End(&step) {
		t.Error("end: episode did not end on an obstacle")
	}
	if step.End() != ts.TerminalStateReached {
		t.Errorf("end: expected end type %v on an obstacle, got %v",
			ts.TerminalStateReached, step.End())
	}
}

func TestReachGoalEndTimeout(t *testing.T) {
	task := testTask(t, 10)

	step := ts.New(ts.Mid, 0, 1, position(Cell{3, 3}), 10)
	if !task.End(&step) {
		t.Error("end: episode did not end at the step limit")
	}
	if step.End() != ts.Timeout {
		t.Errorf("end: expected end type %v, got %v", ts.Timeout, step.End())
	}

	// The step limit takes precedence even in a terminal state
	step = ts.New(ts.Mid, 0, 1, position(Cell{8, 8}), 10)
	if !task.End(&step) {
		t.Error("end: episode did not end at the step limit")
	}
	if step.End() != ts.Timeout {
		t.Errorf("end: expected the step limit to take precedence, got "+
			"end type %v", step.End())
	}
}

func TestReachGoalAtGoal(t *testing.T) {
	task := testTask(t, 100)

	if !task.AtGoal(position(Cell{8, 8})) {
		t.Error("atGoal: the goal position should be at the goal")
	}
	if task.AtGoal(position(Cell{0, 0})) {
		t.Error("atGoal: the start position should not be at the goal")
	}

	// Full observation vectors carry the position in their trailing
	// elements
	obs := mat.NewVecDense(29, nil)
	obs.SetVec(25, 8)
	obs.SetVec(26, 8)
	if !task.AtGoal(obs) {
		t.Error("atGoal: observation at the goal should be at the goal")
	}

	if task.AtGoal(mat.NewVecDense(1, []float64{8})) {
		t.Error("atGoal: a malformed state should not be at the goal")
	}
}

func TestVecCell(t *testing.T) {
	if c := vecCell(position(Cell{3, 7})); c != (Cell{3, 7}) {
		t.Errorf("vecCell: expected (3, 7), got %v", c)
	}

	obs := mat.NewVecDense(29, nil)
	obs.SetVec(25, 5)
	obs.SetVec(26, 6)
	obs.SetVec(27, 8)
	obs.SetVec(28, 8)
	if c := vecCell(obs); c != (Cell{5, 6}) {
		t.Errorf("vecCell: expected (5, 6), got %v", c)
	}
}
