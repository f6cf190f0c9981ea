// Package scene abstracts the continuous simulator in which grid
// environments may place objects and actuate a robot body. Environments
// treat a Scene as an optional capability: every scene operation may
// fail, and callers are expected to degrade to discrete-only behaviour
// when one does.
package scene

import (
	"errors"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Handle identifies an object that was created in a Scene
type Handle string

// NilHandle is the handle of an object that does not exist
const NilHandle Handle = ""

var (
	// ErrClosed is returned when operating on a scene after Teardown
	ErrClosed = errors.New("scene has been torn down")

	// ErrUnknownHandle is returned when operating on an object that
	// does not exist in the scene
	ErrUnknownHandle = errors.New("unknown object handle")
)

// Pose describes the position and orientation of a body in a Scene
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// Identity returns a pose at the origin with identity orientation
func Identity() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

// ObjectSpec describes a cuboid object to create in a Scene
type ObjectSpec struct {
	Name        string
	Position    r3.Vec
	Dims        r3.Vec
	Color       [3]float64
	Mass        float64
	Respondable bool
}

// Scene is the boundary to an external continuous simulator. A Scene
// owns an actuated body whose pose environments update as the agent
// moves, and a scene-global simulation clock which advances only when
// Advance is called.
//
// Implementations need not be safe for concurrent use.
type Scene interface {
	// Start begins the simulation. It must be called before any other
	// scene operation.
	Start() error

	// CreateObject places a new object in the scene, returning its
	// handle
	CreateObject(ObjectSpec) (Handle, error)

	// RemoveObject removes the object with the given handle from the
	// scene
	RemoveObject(Handle) error

	// MoveActuator sets the pose of the actuated body
	MoveActuator(Pose) error

	// ActuatorPose returns the current pose of the actuated body
	ActuatorPose() (Pose, error)

	// TracePath draws a path through the argument poses for
	// visualization, returning the handle of the drawn path
	TracePath([]Pose) (Handle, error)

	// SimulationTime returns the scene's simulated clock in seconds
	SimulationTime() (float64, error)

	// Advance steps the simulation forward
	Advance() error

	// Teardown stops the simulation and releases the scene's
	// resources. After Teardown, all scene operations fail.
	Teardown() error
}
