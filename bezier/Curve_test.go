package bezier

import (
	"math"
	"testing"

	"github.com/samuelfneumann/gogrid/scene"
	"gonum.org/v1/gonum/spatial/r3"
)

// poseAt returns a control-point pose at the given position
func poseAt(x, y, z float64) scene.Pose {
	pose := scene.Identity()
	pose.Position = r3.Vec{X: x, Y: y, Z: z}
	return pose
}

func TestCurveLine(t *testing.T) {
	c := New(0.1)
	c.Append(poseAt(0, 0, 0))
	c.Append(poseAt(1, 0, 0))

	start := c.PointAt(0)
	if start.X != 0 || start.Y != 0 {
		t.Errorf("pointAt: expected curve to start at (0, 0), got (%v, %v)",
			start.X, start.Y)
	}

	end := c.PointAt(1)
	if end.X != 1 || end.Y != 0 {
		t.Errorf("pointAt: expected curve to end at (1, 0), got (%v, %v)",
			end.X, end.Y)
	}

	middle := c.PointAt(0.5)
	if math.Abs(middle.X-0.5) > 1e-12 || math.Abs(middle.Y) > 1e-12 {
		t.Errorf("pointAt: expected midpoint (0.5, 0), got (%v, %v)",
			middle.X, middle.Y)
	}

	if length := c.Length(); math.Abs(length-1) > 1e-6 {
		t.Errorf("length: expected 1 for a unit line, got %v", length)
	}
}

func TestCurveHeight(t *testing.T) {
	c := New(0.05)
	c.Append(poseAt(0, 0, 7))
	c.Append(poseAt(1, 1, -3))

	for _, param := range []float64{0, 0.25, 0.5, 0.75, 1} {
		if z := c.PointAt(param).Z; z != 0.05 {
			t.Errorf("pointAt(%v): expected height 0.05, got %v", param, z)
		}
	}

	if c.Height() != 0.05 {
		t.Errorf("height: expected 0.05, got %v", c.Height())
	}
}

func TestCurveQuadratic(t *testing.T) {
	c := New(0)
	c.Append(poseAt(0, 0, 0))
	c.Append(poseAt(0.5, 0.5, 0))
	c.Append(poseAt(1, 0, 0))

	// B(0.5) = 0.25 p0 + 0.5 p1 + 0.25 p2
	middle := c.PointAt(0.5)
	if math.Abs(middle.X-0.5) > 1e-12 || math.Abs(middle.Y-0.25) > 1e-12 {
		t.Errorf("pointAt: expected (0.5, 0.25), got (%v, %v)", middle.X,
			middle.Y)
	}

	// The curve is longer than the straight chord but shorter than the
	// control polygon
	length := c.Length()
	if length <= 1 || length >= math.Sqrt2 {
		t.Errorf("length: expected a length in (1, %v), got %v",
			math.Sqrt2, length)
	}
}

func TestCurveTangent(t *testing.T) {
	c := New(0)
	c.Append(poseAt(0, 0, 0))
	c.Append(poseAt(1, 1, 0))

	tangent := c.TangentAt(0.5)
	unit := 1 / math.Sqrt2
	if math.Abs(tangent.X-unit) > 1e-6 || math.Abs(tangent.Y-unit) > 1e-6 {
		t.Errorf("tangentAt: expected (%v, %v), got (%v, %v)", unit, unit,
			tangent.X, tangent.Y)
	}
	if tangent.Z != 0 {
		t.Errorf("tangentAt: expected a planar tangent, got z = %v",
			tangent.Z)
	}

	// A single control point has no direction of travel
	point := New(0)
	point.Append(poseAt(2, 2, 0))
	if tangent := point.TangentAt(0.5); tangent != (r3.Vec{}) {
		t.Errorf("tangentAt: expected the zero vector, got %v", tangent)
	}
}

func TestCurvePrune(t *testing.T) {
	c := New(0)
	for i := 0; i < 5; i++ {
		c.Append(poseAt(float64(i), 0, 0))
	}

	c.Prune(10)
	if c.Len() != 5 {
		t.Errorf("prune: expected pruning to more points than exist to "+
			"keep all %d points, got %d", 5, c.Len())
	}

	c.Prune(-1)
	if c.Len() != 5 {
		t.Errorf("prune: expected negative pruning to keep all points, "+
			"got %d", c.Len())
	}

	c.Prune(2)
	if c.Len() != 2 {
		t.Fatalf("prune: expected 2 points, got %d", c.Len())
	}

	points := c.Points()
	if points[0].Position.X != 3 || points[1].Position.X != 4 {
		t.Errorf("prune: expected the 2 most recent points, got x = "+
			"(%v, %v)", points[0].Position.X, points[1].Position.X)
	}
}
