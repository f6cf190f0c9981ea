package scene

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Time allowed to write or read a single message to the peer.
const ioWait = 3 * time.Second

// wirePose is the wire representation of a Pose. Orientation is a unit
// quaternion in (x, y, z, w) order.
type wirePose struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

func toWire(p Pose) wirePose {
	return wirePose{
		Position: [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Orientation: [4]float64{
			p.Orientation.Imag,
			p.Orientation.Jmag,
			p.Orientation.Kmag,
			p.Orientation.Real,
		},
	}
}

func fromWire(w wirePose) Pose {
	p := Identity()
	p.Position.X = w.Position[0]
	p.Position.Y = w.Position[1]
	p.Position.Z = w.Position[2]
	p.Orientation.Imag = w.Orientation[0]
	p.Orientation.Jmag = w.Orientation[1]
	p.Orientation.Kmag = w.Orientation[2]
	p.Orientation.Real = w.Orientation[3]
	return p
}

// wireObject is the wire representation of an ObjectSpec
type wireObject struct {
	Name        string     `json:"name"`
	Position    [3]float64 `json:"position"`
	Dims        [3]float64 `json:"dims"`
	Color       [3]float64 `json:"color"`
	Mass        float64    `json:"mass"`
	Respondable bool       `json:"respondable"`
}

// request is a single scene operation sent to the remote simulator
type request struct {
	Op     string      `json:"op"`
	Object *wireObject `json:"object,omitempty"`
	Handle Handle      `json:"handle,omitempty"`
	Pose   *wirePose   `json:"pose,omitempty"`
	Points []wirePose  `json:"points,omitempty"`
}

// response is the remote simulator's reply to a request
type response struct {
	OK     bool      `json:"ok"`
	Handle Handle    `json:"handle,omitempty"`
	Time   float64   `json:"time,omitempty"`
	Pose   *wirePose `json:"pose,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Remote implements Scene over a websocket connection to an external
// simulator process. Every scene operation is a single JSON
// request/response exchange with write and read deadlines, so a hung
// peer surfaces as an error rather than a blocked environment.
type Remote struct {
	conn   *websocket.Conn
	closed bool
}

// NewRemote dials the simulator listening at the given websocket URL
// (e.g. ws://localhost:9155/scene)
func NewRemote(url string) (*Remote, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("newRemote: could not dial %v: %v", url, err)
	}

	return &Remote{conn: conn}, nil
}

// roundTrip sends a request and waits for the matching response
func (r *Remote) roundTrip(req request) (response, error) {
	if r.closed {
		return response{}, ErrClosed
	}

	if err := r.conn.SetWriteDeadline(time.Now().Add(ioWait)); err != nil {
		return response{}, fmt.Errorf("%v: %v", req.Op, err)
	}
	if err := r.conn.WriteJSON(req); err != nil {
		return response{}, fmt.Errorf("%v: write failed: %v", req.Op, err)
	}

	if err := r.conn.SetReadDeadline(time.Now().Add(ioWait)); err != nil {
		return response{}, fmt.Errorf("%v: %v", req.Op, err)
	}
	var resp response
	if err := r.conn.ReadJSON(&resp); err != nil {
		return response{}, fmt.Errorf("%v: read failed: %v", req.Op, err)
	}

	if !resp.OK {
		return response{}, fmt.Errorf("%v: simulator refused: %v", req.Op,
			resp.Error)
	}
	return resp, nil
}

// Start begins the remote simulation
func (r *Remote) Start() error {
	_, err := r.roundTrip(request{Op: "start"})
	return err
}

// CreateObject places an object in the remote scene
func (r *Remote) CreateObject(spec ObjectSpec) (Handle, error) {
	obj := wireObject{
		Name:        spec.Name,
		Position:    [3]float64{spec.Position.X, spec.Position.Y, spec.Position.Z},
		Dims:        [3]float64{spec.Dims.X, spec.Dims.Y, spec.Dims.Z},
		Color:       spec.Color,
		Mass:        spec.Mass,
		Respondable: spec.Respondable,
	}

	resp, err := r.roundTrip(request{Op: "create", Object: &obj})
	if err != nil {
		return NilHandle, err
	}
	return resp.Handle, nil
}

// RemoveObject removes the object with the given handle from the
// remote scene
func (r *Remote) RemoveObject(handle Handle) error {
	_, err := r.roundTrip(request{Op: "remove", Handle: handle})
	return err
}

// MoveActuator sets the pose of the remote actuated body
func (r *Remote) MoveActuator(p Pose) error {
	wire := toWire(p)
	_, err := r.roundTrip(request{Op: "move", Pose: &wire})
	return err
}

// ActuatorPose returns the pose of the remote actuated body
func (r *Remote) ActuatorPose() (Pose, error) {
	resp, err := r.roundTrip(request{Op: "pose"})
	if err != nil {
		return Pose{}, err
	}
	if resp.Pose == nil {
		return Pose{}, fmt.Errorf("pose: simulator returned no pose")
	}
	return fromWire(*resp.Pose), nil
}

// TracePath draws a path through the argument poses in the remote
// scene
func (r *Remote) TracePath(points []Pose) (Handle, error) {
	wire := make([]wirePose, len(points))
	for i, p := range points {
		wire[i] = toWire(p)
	}

	resp, err := r.roundTrip(request{Op: "trace", Points: wire})
	if err != nil {
		return NilHandle, err
	}
	return resp.Handle, nil
}

// SimulationTime returns the remote simulation clock in seconds
func (r *Remote) SimulationTime() (float64, error) {
	resp, err := r.roundTrip(request{Op: "time"})
	if err != nil {
		return 0, err
	}
	return resp.Time, nil
}

// Advance steps the remote simulation forward
func (r *Remote) Advance() error {
	_, err := r.roundTrip(request{Op: "advance"})
	return err
}

// Teardown stops the remote simulation and closes the connection
func (r *Remote) Teardown() error {
	if r.closed {
		return ErrClosed
	}

	_, err := r.roundTrip(request{Op: "teardown"})
	r.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(ioWait)
	if writeErr := r.conn.WriteControl(websocket.CloseMessage, msg,
		deadline); writeErr != nil && err == nil {
		err = writeErr
	}
	if closeErr := r.conn.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}
