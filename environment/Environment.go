// Package environment outlines the interfaces and structs needed to implement
// concrete environments
package environment

import (
	"github.com/samuelfneumann/gogrid/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when and how episodes end. An Ender inspects the
// timestep generated by an environmental transition and, if the episode
// should end at that timestep, modifies the timestep so that its
// StepType field is timestep.Last and its end type describes the reason
// for ending.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some environment,
// along with the starting states of the task and the conditions under
// which the task ends.
type Task interface {
	Starter
	Ender

	// GetReward returns the reward for a transition from state to
	// nextState when taking action a
	GetReward(state, a, nextState mat.Vector) float64

	// AtGoal returns whether state is a goal state of the Task
	AtGoal(state mat.Matrix) bool
}

// Environment implements a simulated environment, which includes a Task to
// complete
type Environment interface {
	Task

	// Reset resets the environment to some starting state between
	// episodes
	Reset() (timestep.TimeStep, error)

	// Step takes one environmental step given an action, returning the
	// next timestep and whether it is the last of the episode
	Step(action *mat.VecDense) (timestep.TimeStep, bool, error)

	// CurrentTimeStep returns the last timestep of the environment
	CurrentTimeStep() timestep.TimeStep

	ActionSpec() Spec
	ObservationSpec() Spec
	DiscountSpec() Spec
}
