// Package bezier builds, measures, and samples Bezier curves through
// sequences of control-point poses, and traverses them at near-constant
// speed against a scene's simulation clock. Grid environments use it to
// project discrete moves into smooth continuous trajectories for an
// actuated body.
package bezier

import (
	"math"

	"github.com/samuelfneumann/gogrid/scene"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/combin"
)

// Number of chords used to approximate arc length
const lengthSubdivisions int = 1000

// Forward-difference parameter step used to approximate tangents
const tangentDelta float64 = 0.001

// Curve is a Bezier curve through an ordered sequence of control-point
// poses. The curve is planar: every sampled point has its z coordinate
// overwritten with a fixed height rather than interpolated.
//
// A curve through n+1 control points has degree n, so appending points
// raises the degree. Callers that only care about the most recent
// segment should Prune after each traversal to keep evaluation cheap.
type Curve struct {
	points []scene.Pose
	height float64
}

// New returns an empty curve whose sampled points lie in the plane
// z = height
func New(height float64) *Curve {
	return &Curve{height: height}
}

// Append adds a control point to the end of the curve
func (c *Curve) Append(p scene.Pose) {
	c.points = append(c.points, p)
}

// Prune retains only the keep most recent control points
func (c *Curve) Prune(keep int) {
	if keep < 0 || len(c.points) <= keep {
		return
	}
	c.points = append(c.points[:0], c.points[len(c.points)-keep:]...)
}

// Len returns the number of control points on the curve
func (c *Curve) Len() int {
	return len(c.points)
}

// Points returns the control points of the curve
func (c *Curve) Points() []scene.Pose {
	points := make([]scene.Pose, len(c.points))
	copy(points, c.points)
	return points
}

// Height returns the plane in which sampled points lie
func (c *Curve) Height() float64 {
	return c.height
}

// PointAt evaluates the curve at parameter t ∈ [0, 1]. The Bernstein
// weights are re-normalized by their own sum before being applied, which
// guards against accumulated floating-point drift in the weight sum.
func (c *Curve) PointAt(t float64) r3.Vec {
	n := len(c.points) - 1

	var point r3.Vec
	totalWeight := 0.0

	for i := 0; i <= n; i++ {
		weight := float64(combin.Binomial(n, i)) *
			math.Pow(1-t, float64(n-i)) * math.Pow(t, float64(i))

		point = point.Add(c.points[i].Position.Scale(weight))
		totalWeight += weight
	}

	if totalWeight > 0 {
		point = point.Scale(1 / totalWeight)
	}

	point.Z = c.height
	return point
}

// Length approximates the arc length of the curve by summing chord
// lengths between samples at uniform parameter steps. It is an
// approximation, not exact arc length.
func (c *Curve) Length() float64 {
	totalLength := 0.0
	prev := c.PointAt(0)

	for i := 1; i <= lengthSubdivisions; i++ {
		t := float64(i) / float64(lengthSubdivisions)
		curr := c.PointAt(t)
		totalLength += r3.Norm(curr.Sub(prev))
		prev = curr
	}
	return totalLength
}

// TangentAt approximates the unit tangent of the curve at parameter t
// by forward finite difference. The zero vector is returned where the
// difference vanishes.
func (c *Curve) TangentAt(t float64) r3.Vec {
	tNext := math.Min(1, t+tangentDelta)
	tangent := c.PointAt(tNext).Sub(c.PointAt(t))

	if r3.Norm(tangent) > 0 {
		return r3.Unit(tangent)
	}
	return r3.Vec{}
}
