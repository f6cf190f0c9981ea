package gridworld

import (
	env "github.com/samuelfneumann/gogrid/environment"
	ts "github.com/samuelfneumann/gogrid/timestep"
	"gonum.org/v1/gonum/mat"
)

const (
	// GoalReward is given for reaching the goal cell
	GoalReward float64 = 1.0

	// ObstacleReward is given for stepping onto an obstacle cell
	ObstacleReward float64 = -20.0

	// ApproachReward is given for moving closer to the goal
	ApproachReward float64 = 0.1

	// RetreatReward is given for moving farther from the goal
	RetreatReward float64 = -0.1

	// IdleReward is given for a step that leaves the distance to the
	// goal unchanged
	IdleReward float64 = -0.05

	// WallReward is added when a directional action is clamped at the
	// grid boundary
	WallReward float64 = -0.2

	// ProximityWeight scales the penalty for ending a step near an
	// obstacle
	ProximityWeight float64 = 0.3
)

// ReachGoal implements the Task interface for the task of navigating
// to the goal cell of a layout while avoiding its obstacles. Reaching
// the goal earns GoalReward and ends the episode. Stepping onto an
// obstacle earns ObstacleReward and also ends the episode. All other
// steps are shaped by the change in Manhattan distance to the goal,
// penalized in proportion to the proximity of the nearest obstacle,
// and penalized further when the agent pushes against the grid
// boundary.
type ReachGoal struct {
	layout *Layout

	stepLimit env.Ender
	terminal  env.Ender

	registered bool
}

// NewReachGoal returns a new ReachGoal task whose episodes are cut off
// after cutoff steps
func NewReachGoal(cutoff int) env.Task {
	task := &ReachGoal{
		stepLimit: env.NewStepLimit(cutoff),
	}
	task.terminal = env.NewFunctionEnder(task.done, ts.TerminalStateReached)
	return task
}

// Register registers a layout with the task. Tasks must have a layout
// registered before their Start, GetReward, End, or AtGoal methods are
// called.
func (r *ReachGoal) Register(l *Layout) {
	r.layout = l
	r.registered = true
}

// Start returns the starting position of the agent
func (r *ReachGoal) Start() *mat.VecDense {
	if !r.registered {
		panic("start: no layout registered with task")
	}

	return mat.NewVecDense(2, []float64{
		float64(r.layout.start.X),
		float64(r.layout.start.Y),
	})
}

// GetReward returns the reward for taking action a in the state
// described by state, resulting in the state described by nextState
func (r *ReachGoal) GetReward(state, a, nextState mat.Vector) float64 {
	prev := vecCell(state)
	next := vecCell(nextState)

	if next == r.layout.goal {
		return GoalReward
	}
	if r.layout.IsObstacle(next) {
		return ObstacleReward
	}

	prevDistance := manhattan(prev, r.layout.goal)
	nextDistance := manhattan(next, r.layout.goal)

	var reward float64
	switch {
	case nextDistance < prevDistance:
		reward = ApproachReward
	case nextDistance > prevDistance:
		reward = RetreatReward
	default:
		reward = IdleReward
	}

	reward -= ProximityWeight * r.layout.ObstacleProximity(next)

	// A directional action that leaves the agent in place was clamped
	// at the boundary
	if int(a.AtVec(0)) != Stay && next == prev {
		reward += WallReward
	}

	return reward
}

// End checks whether t is the last step in the episode, adjusting t
// as needed. Episodes end when the step limit is reached, when the
// agent reaches the goal, or when the agent steps onto an obstacle.
func (r *ReachGoal) End(t *ts.TimeStep) bool {
	if last := r.stepLimit.End(t); last {
		return last
	}
	return r.terminal.End(t)
}

// AtGoal returns whether state describes a position at the goal cell
func (r *ReachGoal) AtGoal(state mat.Matrix) bool {
	rows, cols := state.Dims()
	if cols != 1 || rows < 2 {
		return false
	}

	var c Cell
	if rows == 2 {
		c = Cell{int(state.At(0, 0)), int(state.At(1, 0))}
	} else {
		c = Cell{int(state.At(rows-4, 0)), int(state.At(rows-3, 0))}
	}

	return c == r.layout.goal
}

// done returns whether the position described by obs ends the episode
func (r *ReachGoal) done(obs *mat.VecDense) bool {
	if !r.registered {
		return false
	}

	c := vecCell(obs)
	return c == r.layout.goal || r.layout.IsObstacle(c)
}

// vecCell extracts the agent's cell from a state vector. Length-2
// vectors hold the position directly; longer observation vectors hold
// the agent's coordinates in their trailing elements.
func vecCell(v mat.Vector) Cell {
	if v.Len() == 2 {
		return Cell{int(v.AtVec(0)), int(v.AtVec(1))}
	}
	return Cell{int(v.AtVec(v.Len() - 4)), int(v.AtVec(v.Len() - 3))}
}
