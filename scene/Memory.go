package scene

import (
	"github.com/google/uuid"
)

// Memory implements Scene entirely in process. It acknowledges every
// call, tracks created objects by handle, records every pose the
// actuator is moved through, and runs a simulated clock that advances
// by a fixed increment on each Advance call.
//
// Memory is the default stand-in when no external simulator is
// attached, and doubles as a test backend: the recorded actuator trail
// and the object registry can be inspected after an episode.
type Memory struct {
	dt      float64
	now     float64
	started bool
	closed  bool

	objects  map[Handle]ObjectSpec
	actuator Pose
	trail    []Pose
}

// NewMemory returns a Memory scene whose clock advances by dt seconds
// per Advance call
func NewMemory(dt float64) *Memory {
	return &Memory{
		dt:      dt,
		objects: make(map[Handle]ObjectSpec),
	}
}

// Start begins the simulation
func (m *Memory) Start() error {
	if m.closed {
		return ErrClosed
	}
	m.started = true
	return nil
}

// CreateObject registers the object under a fresh handle
func (m *Memory) CreateObject(spec ObjectSpec) (Handle, error) {
	if m.closed {
		return NilHandle, ErrClosed
	}

	handle := Handle(uuid.NewString())
	m.objects[handle] = spec
	return handle, nil
}

// RemoveObject deletes the object with the given handle
func (m *Memory) RemoveObject(handle Handle) error {
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.objects[handle]; !ok {
		return ErrUnknownHandle
	}

	delete(m.objects, handle)
	return nil
}

// MoveActuator sets the actuator pose, recording it in the trail
func (m *Memory) MoveActuator(p Pose) error {
	if m.closed {
		return ErrClosed
	}

	m.actuator = p
	m.trail = append(m.trail, p)
	return nil
}

// ActuatorPose returns the last pose the actuator was moved to
func (m *Memory) ActuatorPose() (Pose, error) {
	if m.closed {
		return Pose{}, ErrClosed
	}
	return m.actuator, nil
}

// TracePath registers a path object through the argument poses
func (m *Memory) TracePath(points []Pose) (Handle, error) {
	if m.closed {
		return NilHandle, ErrClosed
	}

	handle := Handle(uuid.NewString())
	m.objects[handle] = ObjectSpec{Name: "Path"}
	return handle, nil
}

// SimulationTime returns the simulated clock in seconds
func (m *Memory) SimulationTime() (float64, error) {
	if m.closed {
		return 0, ErrClosed
	}
	return m.now, nil
}

// Advance steps the simulated clock forward by dt
func (m *Memory) Advance() error {
	if m.closed {
		return ErrClosed
	}
	m.now += m.dt
	return nil
}

// Teardown clears the object registry and closes the scene
func (m *Memory) Teardown() error {
	if m.closed {
		return ErrClosed
	}

	m.closed = true
	m.objects = nil
	return nil
}

// Started returns whether Start has been called
func (m *Memory) Started() bool {
	return m.started
}

// NumObjects returns the number of objects currently in the scene
func (m *Memory) NumObjects() int {
	return len(m.objects)
}

// Object returns the specification of the object with the given handle
func (m *Memory) Object(handle Handle) (ObjectSpec, bool) {
	spec, ok := m.objects[handle]
	return spec, ok
}

// Trail returns every pose the actuator has been moved through
func (m *Memory) Trail() []Pose {
	return m.trail
}
