package bezier

import (
	"fmt"
	"math"
	"time"

	"github.com/samuelfneumann/gogrid/scene"
	"github.com/samuelfneumann/gogrid/utils/floatutils"
	"gonum.org/v1/gonum/num/quat"
)

const (
	// DefaultWatchdog bounds the wall-clock time of a single traversal
	DefaultWatchdog time.Duration = 3 * time.Second

	// Wall-clock pause before re-reading a simulation clock that
	// reported no forward progress
	stallRetry time.Duration = 10 * time.Millisecond

	// Remaining distance below which a traversal counts as complete
	arrivalTolerance float64 = 0.001
)

// Follower traverses a Curve at near-constant speed, driving a scene's
// actuated body. Distance travelled advances by velocity multiplied by
// the scene clock's progress each tick, so the traversal speed follows
// simulated time, not wall time. A wall-clock watchdog bounds each
// traversal regardless of what the scene clock reports, so a stalled
// or misbehaving clock cannot block the caller indefinitely.
type Follower struct {
	sc       scene.Scene
	velocity float64
	pacing   time.Duration
	watchdog time.Duration
}

// NewFollower returns a Follower that moves the actuated body of sc at
// velocity metres per simulated second, pausing for pacing between
// samples to rate-limit the traversal.
func NewFollower(sc scene.Scene, velocity float64,
	pacing time.Duration) (*Follower, error) {
	if velocity <= 0 {
		return nil, fmt.Errorf("newFollower: velocity must be positive, "+
			"got %v", velocity)
	}
	if pacing < 0 {
		return nil, fmt.Errorf("newFollower: pacing cannot be negative, "+
			"got %v", pacing)
	}

	return &Follower{
		sc:       sc,
		velocity: velocity,
		pacing:   pacing,
		watchdog: DefaultWatchdog,
	}, nil
}

// SetVelocity sets the traversal speed in metres per simulated second
func (f *Follower) SetVelocity(velocity float64) error {
	if velocity <= 0 {
		return fmt.Errorf("setVelocity: velocity must be positive, got %v",
			velocity)
	}
	f.velocity = velocity
	return nil
}

// SetPacing sets the pause between traversal samples
func (f *Follower) SetPacing(pacing time.Duration) {
	if pacing < 0 {
		pacing = 0
	}
	f.pacing = pacing
}

// SetWatchdog sets the wall-clock bound on a single traversal
func (f *Follower) SetWatchdog(watchdog time.Duration) {
	f.watchdog = watchdog
}

// Follow traverses the curve from start to end, pushing a pose to the
// scene at each sample. Orientation is yaw-only, taken from the curve
// tangent; where the tangent vanishes the previous orientation is kept.
// Follow returns early without error when the watchdog expires, and
// returns an error as soon as any scene operation fails.
func (f *Follower) Follow(c *Curve) error {
	if c.Len() < 2 {
		return nil
	}

	length := c.Length()
	if length <= 0 {
		return nil
	}

	orientation := c.Points()[0].Orientation
	distance := 0.0

	prev, err := f.sc.SimulationTime()
	if err != nil {
		return fmt.Errorf("follow: %v", err)
	}

	deadline := time.Now().Add(f.watchdog)

	for distance < length {
		if time.Now().After(deadline) {
			break
		}

		now, err := f.sc.SimulationTime()
		if err != nil {
			return fmt.Errorf("follow: %v", err)
		}

		delta := now - prev
		if delta <= 0 {
			// The scene clock has not progressed. Step the simulation
			// and yield before retrying.
			prev = now
			if err := f.sc.Advance(); err != nil {
				return fmt.Errorf("follow: %v", err)
			}
			time.Sleep(stallRetry)
			continue
		}

		distance += f.velocity * delta
		if distance >= length-arrivalTolerance {
			break
		}

		t := floatutils.Clip(distance/length, 0, 1)
		position := c.PointAt(t)
		tangent := c.TangentAt(t)

		if math.Hypot(tangent.X, tangent.Y) > 0 {
			yaw := math.Atan2(tangent.Y, tangent.X)
			orientation = quat.Number{
				Real: math.Cos(yaw / 2),
				Kmag: math.Sin(yaw / 2),
			}
		}

		pose := scene.Pose{Position: position, Orientation: orientation}
		if err := f.sc.MoveActuator(pose); err != nil {
			return fmt.Errorf("follow: %v", err)
		}

		prev = now
		if err := f.sc.Advance(); err != nil {
			return fmt.Errorf("follow: %v", err)
		}
		time.Sleep(f.pacing)
	}

	return nil
}
