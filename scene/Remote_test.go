package scene

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestWirePose(t *testing.T) {
	pose := Pose{
		Position: r3.Vec{X: 1, Y: 2, Z: 3},
		Orientation: quat.Number{
			Real: 0.5,
			Imag: 0.1,
			Jmag: 0.2,
			Kmag: 0.3,
		},
	}

	wire := toWire(pose)
	if wire.Position != [3]float64{1, 2, 3} {
		t.Errorf("toWire: expected position [1 2 3], got %v", wire.Position)
	}

	// Orientation travels in (x, y, z, w) order
	if wire.Orientation != [4]float64{0.1, 0.2, 0.3, 0.5} {
		t.Errorf("toWire: expected orientation [0.1 0.2 0.3 0.5], got %v",
			wire.Orientation)
	}

	if back := fromWire(wire); back != pose {
		t.Errorf("fromWire: expected %v, got %v", pose, back)
	}
}

// sceneServer implements the simulator side of the wire protocol for a
// single websocket connection
func sceneServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				t.Errorf("upgrade: %v", err)
				return
			}
			defer conn.Close()

			var simTime float64
			var actuator wirePose

			for {
				var req request
				if err := conn.ReadJSON(&req); err != nil {
					return
				}

				resp := response{OK: true}
				switch req.Op {
				case "start", "advance", "teardown":

				case "create":
					resp.Handle = "obj-1"

				case "remove":
					if req.Handle != "obj-1" {
						resp.OK = false
						resp.Error = "unknown handle"
					}

				case "move":
					actuator = *req.Pose

				case "pose":
					pose := actuator
					resp.Pose = &pose

				case "time":
					simTime += 0.05
					resp.Time = simTime

				case "trace":
					if len(req.Points) == 0 {
						resp.OK = false
						resp.Error = "empty path"
					}
					resp.Handle = "trace-1"

				default:
					resp.OK = false
					resp.Error = "unknown op"
				}

				if err := conn.WriteJSON(&resp); err != nil {
					return
				}
			}
		}))
}

func TestRemote(t *testing.T) {
	server := sceneServer(t)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	remote, err := NewRemote(url)
	if err != nil {
		t.Fatalf("newRemote: %v", err)
	}

	if err := remote.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	handle, err := remote.CreateObject(ObjectSpec{
		Name:     "Obstacle0",
		Position: r3.Vec{X: 1, Y: -1, Z: 0.4},
		Dims:     r3.Vec{X: 0.3, Y: 0.3, Z: 0.8},
	})
	if err != nil {
		t.Fatalf("createObject: %v", err)
	}
	if handle != "obj-1" {
		t.Errorf("createObject: expected handle obj-1, got %v", handle)
	}

	pose := Pose{
		Position:    r3.Vec{X: 0.25, Y: -0.75, Z: 0.12},
		Orientation: quat.Number{Real: 0.8, Kmag: 0.6},
	}
	if err := remote.MoveActuator(pose); err != nil {
		t.Fatalf("moveActuator: %v", err)
	}

	got, err := remote.ActuatorPose()
	if err != nil {
		t.Fatalf("actuatorPose: %v", err)
	}
	if got != pose {
		t.Errorf("actuatorPose: expected %v, got %v", pose, got)
	}

	now, err := remote.SimulationTime()
	if err != nil {
		t.Fatalf("simulationTime: %v", err)
	}
	if math.Abs(now-0.05) > 1e-12 {
		t.Errorf("simulationTime: expected 0.05, got %v", now)
	}

	if err := remote.Advance(); err != nil {
		t.Errorf("advance: %v", err)
	}

	trace, err := remote.TracePath([]Pose{Identity(), pose})
	if err != nil {
		t.Fatalf("tracePath: %v", err)
	}
	if trace != "trace-1" {
		t.Errorf("tracePath: expected handle trace-1, got %v", trace)
	}

	if err := remote.RemoveObject("not-a-handle"); err == nil {
		t.Error("removeObject: expected an error for an unknown handle")
	}
	if err := remote.RemoveObject(handle); err != nil {
		t.Errorf("removeObject: %v", err)
	}

	if err := remote.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if err := remote.Start(); err != ErrClosed {
		t.Errorf("start: expected ErrClosed after teardown, got %v", err)
	}
}

func TestNewRemoteBadAddress(t *testing.T) {
	if _, err := NewRemote("ws://127.0.0.1:1/scene"); err == nil {
		t.Error("newRemote: expected an error when no simulator is listening")
	}
}
