package scene

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mapper converts between discrete grid cells and continuous scene
// coordinates. The scene is a square arena of side length span centred
// on the origin, so a grid of c columns covers world x ∈ [-span/2,
// span/2] at a pitch of span/c. Converted world positions always lie
// in the plane z = height.
//
// The two transforms are approximate inverses. ToGrid rounds to the
// nearest cell, so round-tripping an arbitrary world coordinate through
// ToGrid and ToWorld may move it by up to half a pitch.
type Mapper struct {
	span   float64
	cols   int
	rows   int
	height float64
}

// NewMapper returns a Mapper for a grid of the given dimensions
// embedded in a square arena of side length span. Converted world
// coordinates are placed at z = height.
func NewMapper(span float64, cols, rows int, height float64) (*Mapper, error) {
	if span <= 0 {
		return nil, fmt.Errorf("newMapper: span must be positive, got %v", span)
	}
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("newMapper: grid dimensions must be "+
			"positive, got (%d, %d)", cols, rows)
	}

	return &Mapper{
		span:   span,
		cols:   cols,
		rows:   rows,
		height: height,
	}, nil
}

// PitchX returns the world-space width of one grid cell
func (m *Mapper) PitchX() float64 {
	return m.span / float64(m.cols)
}

// PitchY returns the world-space height of one grid cell
func (m *Mapper) PitchY() float64 {
	return m.span / float64(m.rows)
}

// Span returns the side length of the arena
func (m *Mapper) Span() float64 {
	return m.span
}

// Height returns the z coordinate of converted world positions
func (m *Mapper) Height() float64 {
	return m.height
}

// ToGrid converts a world coordinate to the nearest grid cell. The
// second return value is false if the coordinate lies outside the
// arena or the nearest cell lies outside [0, cols] × [0, rows].
func (m *Mapper) ToGrid(x, y float64) (int, int, bool) {
	x += m.span / 2
	y += m.span / 2

	if x > m.span || x < 0 || y > m.span || y < 0 {
		return 0, 0, false
	}

	gridX := int(math.Round(x / m.PitchX()))
	gridY := int(math.Round(y / m.PitchY()))

	if gridX > m.cols || gridX < 0 || gridY > m.rows || gridY < 0 {
		return 0, 0, false
	}

	return gridX, gridY, true
}

// ToWorld converts a grid cell to its world coordinate at z = height.
// The second return value is false if the cell lies outside
// [0, cols] × [0, rows].
func (m *Mapper) ToWorld(gridX, gridY int) (r3.Vec, bool) {
	if gridX > m.cols || gridX < 0 || gridY > m.rows || gridY < 0 {
		return r3.Vec{}, false
	}

	return r3.Vec{
		X: float64(gridX)*m.PitchX() - m.span/2,
		Y: float64(gridY)*m.PitchY() - m.span/2,
		Z: m.height,
	}, true
}
