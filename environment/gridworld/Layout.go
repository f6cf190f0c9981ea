package gridworld

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/ByteArena/box2d"
	"github.com/samuelfneumann/gogrid/scene"
	"github.com/samuelfneumann/gogrid/utils/intutils"
	"github.com/samuelfneumann/gogrid/utils/matutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MinObstacles and MaxObstacles bound the number of obstacles a
	// generated layout may contain
	MinObstacles int = 20
	MaxObstacles int = 50

	// Attempts made to place each object in a continuous scene before
	// giving up on it
	placementAttempts int = 100

	// Clearance kept between an object's footprint and the arena edge
	placementMargin float64 = 0.1

	// How far away an obstacle can be while still contributing to the
	// proximity measure. Obstacles are searched for in a box of this
	// half-width around a cell.
	proximityRadius int = 4

	// Proximity lost per cell of Manhattan distance to the nearest
	// obstacle
	proximityFalloff float64 = 0.2
)

// Continuous footprints of the objects placed in a scene
var (
	obstacleDims = r3.Vec{X: 0.3, Y: 0.3, Z: 0.8}
	goalDims     = r3.Vec{X: 0.125, Y: 0.125, Z: 0.01}
	actuatorDims = r3.Vec{X: 0.2, Y: 0.2, Z: 0.2}
)

// Fallback world positions used when no valid placement is found
var (
	defaultGoalPosition     = r3.Vec{X: 2.0, Y: 2.0}
	defaultActuatorPosition = r3.Vec{}
)

// Cell is one discrete grid position
type Cell struct {
	X, Y int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// manhattan returns the Manhattan distance between two cells
func manhattan(a, b Cell) int {
	return intutils.Abs(a.X-b.X) + intutils.Abs(a.Y-b.Y)
}

// Layout is an arrangement of obstacles, a goal, and an agent starting
// position on a bounded grid. Layouts satisfy the invariants that the
// goal and starting position are in bounds, are distinct, and are not
// obstacles, and that every obstacle is in bounds.
//
// Layouts are generated once per environment and are immutable
// thereafter.
type Layout struct {
	width, height int
	obstacles     map[Cell]bool
	goal          Cell
	start         Cell

	// Handles of the objects this layout created in a scene, if any
	handles []scene.Handle
}

// NewLayout returns a layout with the given obstacles, goal, and
// starting position, or an error if the arguments violate the layout
// invariants.
func NewLayout(width, height int, obstacles []Cell, goal,
	start Cell) (*Layout, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("newLayout: dimensions must be positive, "+
			"got (%d, %d)", width, height)
	}

	l := &Layout{
		width:     width,
		height:    height,
		obstacles: make(map[Cell]bool, len(obstacles)),
		goal:      goal,
		start:     start,
	}

	for _, c := range obstacles {
		if !l.Contains(c) {
			return nil, fmt.Errorf("newLayout: obstacle %v out of bounds", c)
		}
		l.obstacles[c] = true
	}

	if !l.Contains(goal) {
		return nil, fmt.Errorf("newLayout: goal %v out of bounds", goal)
	}
	if !l.Contains(start) {
		return nil, fmt.Errorf("newLayout: start %v out of bounds", start)
	}
	if l.obstacles[goal] {
		return nil, fmt.Errorf("newLayout: goal %v is an obstacle", goal)
	}
	if l.obstacles[start] {
		return nil, fmt.Errorf("newLayout: start %v is an obstacle", start)
	}
	if start == goal {
		return nil, fmt.Errorf("newLayout: start and goal are both %v", start)
	}

	return l, nil
}

// Generate procedurally creates a layout on a width × height grid.
// The obstacle count is drawn uniformly from [MinObstacles,
// MaxObstacles], obstacles are sampled as unique cells, and the goal
// and starting position are sampled by rejection against the obstacles
// (and, for the start, against the goal). Generation is deterministic
// given src.
func Generate(width, height int, src rand.Source) (*Layout, error) {
	if width*height < 3 {
		return nil, fmt.Errorf("generate: grid (%d, %d) too small to hold "+
			"a start and a goal", width, height)
	}

	rng := rand.New(src)

	count := obstacleCount(src)
	if max := width*height - 2; count > max {
		count = max
	}

	obstacles := make(map[Cell]bool, count)
	for len(obstacles) < count {
		obstacles[Cell{rng.Intn(width), rng.Intn(height)}] = true
	}

	var goal Cell
	for {
		goal = Cell{rng.Intn(width), rng.Intn(height)}
		if !obstacles[goal] {
			break
		}
	}

	var start Cell
	for {
		start = Cell{rng.Intn(width), rng.Intn(height)}
		if !obstacles[start] && start != goal {
			break
		}
	}

	return &Layout{
		width:     width,
		height:    height,
		obstacles: obstacles,
		goal:      goal,
		start:     start,
	}, nil
}

// GenerateScene procedurally creates a layout by placing obstacle and
// goal objects in a continuous scene and rasterizing their footprints
// onto the grid. Each object is placed by rejection sampling: a centre
// is drawn uniformly from the arena inset by the object's half-extent
// plus a margin, and accepted when its bounding box stays in the arena
// and overlaps no previously placed obstacle. Objects with no valid
// placement after the attempt budget are skipped (obstacles) or fall
// back to fixed default positions (goal, start) with a logged warning.
//
// Scene failures abort generation and are returned to the caller;
// placement failures never do.
func GenerateScene(width, height int, src rand.Source, sc scene.Scene,
	m *scene.Mapper) (*Layout, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("generateScene: dimensions must be "+
			"positive, got (%d, %d)", width, height)
	}

	half := m.Span() / 2
	count := obstacleCount(src)

	var placed []r3.Vec
	var handles []scene.Handle
	cells := make(map[Cell]bool)

	obstacleSampler := centreSampler(half, obstacleDims, placementMargin, src)
	for i := 0; i < count; i++ {
		centre, ok := samplePlacement(obstacleSampler, obstacleDims, placed,
			half)
		if !ok {
			log.Printf("generateScene: no valid position for obstacle %d "+
				"after %d attempts, skipping", i, placementAttempts)
			continue
		}
		centre.Z = obstacleDims.Z / 2

		handle, err := sc.CreateObject(scene.ObjectSpec{
			Name:        fmt.Sprintf("Obstacle%d", i),
			Position:    centre,
			Dims:        obstacleDims,
			Color:       [3]float64{1, 0, 0},
			Mass:        1,
			Respondable: true,
		})
		if err != nil {
			return nil, fmt.Errorf("generateScene: could not create "+
				"obstacle %d: %v", i, err)
		}
		handles = append(handles, handle)
		placed = append(placed, centre)

		for _, c := range footprintCells(centre, obstacleDims, m) {
			if c.X < width && c.Y < height {
				cells[c] = true
			}
		}
	}

	goal, goalHandle, err := placeGoal(src, sc, m, placed, half, width, height)
	if err != nil {
		return nil, err
	}
	if goalHandle != scene.NilHandle {
		handles = append(handles, goalHandle)
	}

	start := placeStart(src, m, placed, half, width, height)

	l := &Layout{
		width:     width,
		height:    height,
		obstacles: cells,
		goal:      goal,
		start:     start,
		handles:   handles,
	}
	l.repair()

	return l, nil
}

// placeGoal samples a continuous position for the goal marker, creates
// the marker in the scene, and returns the goal's grid cell
func placeGoal(src rand.Source, sc scene.Scene, m *scene.Mapper,
	placed []r3.Vec, half float64, width, height int) (Cell, scene.Handle,
	error) {
	sampler := centreSampler(half, goalDims, placementMargin, src)

	centre, ok := samplePlacement(sampler, goalDims, placed, half)
	if !ok {
		log.Printf("generateScene: no valid position for goal after %d "+
			"attempts, using default", placementAttempts)
		return worldCell(m, defaultGoalPosition, width, height,
			Cell{width - 1, height - 1}), scene.NilHandle, nil
	}
	centre.Z = goalDims.Z / 2

	handle, err := sc.CreateObject(scene.ObjectSpec{
		Name:        "Goal",
		Position:    centre,
		Dims:        goalDims,
		Color:       [3]float64{0, 1, 0},
		Mass:        0.1,
		Respondable: true,
	})
	if err != nil {
		return Cell{}, scene.NilHandle,
			fmt.Errorf("generateScene: could not create goal: %v", err)
	}

	goal := worldCell(m, centre, width, height, Cell{width - 1, height - 1})
	return goal, handle, nil
}

// placeStart samples a continuous position for the actuated body and
// returns its grid cell. The start is drawn from the inner 80% of the
// arena so the body never begins flush against a wall.
func placeStart(src rand.Source, m *scene.Mapper, placed []r3.Vec,
	half float64, width, height int) Cell {
	sampler := centreSampler(half*0.8, actuatorDims, 0, src)

	centre, ok := samplePlacement(sampler, actuatorDims, placed, half)
	if !ok {
		log.Printf("generateScene: no valid position for start after %d "+
			"attempts, using default", placementAttempts)
		centre = defaultActuatorPosition
	}

	return worldCell(m, centre, width, height, Cell{width / 2, height / 2})
}

// repair enforces the layout invariants after rasterization, dropping
// obstacle cells that collide with the goal or start and relocating
// the start if it coincides with the goal
func (l *Layout) repair() {
	if l.obstacles[l.goal] {
		log.Printf("generateScene: dropping obstacle cell at goal %v",
			l.goal)
		delete(l.obstacles, l.goal)
	}
	if l.obstacles[l.start] {
		log.Printf("generateScene: dropping obstacle cell at start %v",
			l.start)
		delete(l.obstacles, l.start)
	}
	if l.start == l.goal {
		for y := 0; y < l.height; y++ {
			for x := 0; x < l.width; x++ {
				c := Cell{x, y}
				if !l.obstacles[c] && c != l.goal {
					log.Printf("generateScene: start and goal are both "+
						"%v, relocating start to %v", l.goal, c)
					l.start = c
					return
				}
			}
		}
	}
}

// obstacleCount draws the number of obstacles a layout should contain
func obstacleCount(src rand.Source) int {
	u := distuv.Uniform{
		Min: float64(MinObstacles),
		Max: float64(MaxObstacles + 1),
		Src: src,
	}
	return int(u.Rand())
}

// centreSampler returns a sampler of object centres lying within the
// arena of the given half-extent, inset so an object of size dims
// keeps clearance margin from the edge
func centreSampler(half float64, dims r3.Vec, margin float64,
	src rand.Source) *distmv.Uniform {
	bounds := []r1.Interval{
		{Min: -half + (dims.X/2 + margin), Max: half - (dims.X/2 + margin)},
		{Min: -half + (dims.Y/2 + margin), Max: half - (dims.Y/2 + margin)},
	}
	return distmv.NewUniform(bounds, src)
}

// samplePlacement draws centres from the sampler until one is valid or
// the attempt budget is exhausted
func samplePlacement(sampler *distmv.Uniform, dims r3.Vec, placed []r3.Vec,
	half float64) (r3.Vec, bool) {
	for attempt := 0; attempt < placementAttempts; attempt++ {
		pos := sampler.Rand(nil)
		centre := r3.Vec{X: pos[0], Y: pos[1]}

		if placementValid(centre, dims, placed, half) {
			return centre, true
		}
	}
	return r3.Vec{}, false
}

// placementValid reports whether an object of size dims centred at
// centre lies within the arena and overlaps no previously placed
// obstacle. Overlap is an axis-aligned bounding-box test.
func placementValid(centre, dims r3.Vec, placed []r3.Vec,
	half float64) bool {
	if centre.X+dims.X/2 > half || centre.X-dims.X/2 < -half ||
		centre.Y+dims.Y/2 > half || centre.Y-dims.Y/2 < -half {
		return false
	}

	box := aabbAt(centre, dims)
	for _, p := range placed {
		if box2d.B2TestOverlapBoundingBoxes(box, aabbAt(p, obstacleDims)) {
			return false
		}
	}
	return true
}

// aabbAt returns the axis-aligned bounding box of an object of size
// dims centred at centre
func aabbAt(centre, dims r3.Vec) box2d.B2AABB {
	return box2d.B2AABB{
		LowerBound: box2d.MakeB2Vec2(centre.X-dims.X/2, centre.Y-dims.Y/2),
		UpperBound: box2d.MakeB2Vec2(centre.X+dims.X/2, centre.Y+dims.Y/2),
	}
}

// footprintCells rasterizes a continuous footprint onto the grid,
// returning every lattice point inside the footprint. Corners are
// rounded inward to the grid pitch so only points strictly inside the
// footprint (up to a small tolerance) are produced.
func footprintCells(centre, dims r3.Vec, m *scene.Mapper) []Cell {
	const eps = 1e-4

	pitchX := m.PitchX()
	pitchY := m.PitchY()

	xStart := math.Ceil((centre.X-dims.X/2)/pitchX) * pitchX
	xEnd := math.Floor((centre.X+dims.X/2)/pitchX) * pitchX
	yStart := math.Ceil((centre.Y-dims.Y/2)/pitchY) * pitchY
	yEnd := math.Floor((centre.Y+dims.Y/2)/pitchY) * pitchY

	var cells []Cell
	for x := xStart; x <= xEnd+eps; x += pitchX {
		for y := yStart; y <= yEnd+eps; y += pitchY {
			if gridX, gridY, ok := m.ToGrid(x, y); ok {
				cells = append(cells, Cell{gridX, gridY})
			}
		}
	}
	return cells
}

// worldCell converts a world position to its grid cell, clamped into
// the layout bounds, or fallback if the position lies outside the
// arena entirely
func worldCell(m *scene.Mapper, world r3.Vec, width, height int,
	fallback Cell) Cell {
	gridX, gridY, ok := m.ToGrid(world.X, world.Y)
	if !ok {
		log.Printf("generateScene: world position (%v, %v) has no grid "+
			"cell, using %v", world.X, world.Y, fallback)
		return fallback
	}
	return Cell{
		X: intutils.Clip(gridX, 0, width-1),
		Y: intutils.Clip(gridY, 0, height-1),
	}
}

// Width returns the number of columns in the layout
func (l *Layout) Width() int {
	return l.width
}

// Height returns the number of rows in the layout
func (l *Layout) Height() int {
	return l.height
}

// Goal returns the goal cell
func (l *Layout) Goal() Cell {
	return l.goal
}

// Start returns the agent starting cell
func (l *Layout) Start() Cell {
	return l.start
}

// Contains returns whether c lies within the layout bounds
func (l *Layout) Contains(c Cell) bool {
	return c.X >= 0 && c.X < l.width && c.Y >= 0 && c.Y < l.height
}

// IsObstacle returns whether c is an obstacle cell
func (l *Layout) IsObstacle(c Cell) bool {
	return l.obstacles[c]
}

// NumObstacles returns the number of obstacle cells in the layout
func (l *Layout) NumObstacles() int {
	return len(l.obstacles)
}

// Obstacles returns the obstacle cells in row-major order
func (l *Layout) Obstacles() []Cell {
	cells := make([]Cell, 0, len(l.obstacles))
	for c := range l.obstacles {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
	return cells
}

// Handles returns the handles of the scene objects this layout
// created, if it was generated in a continuous scene
func (l *Layout) Handles() []scene.Handle {
	return l.handles
}

// ObstacleProximity returns how close c is to the nearest obstacle, in
// [0, 1]. A cell adjacent to an obstacle scores 0.8, and the score
// falls off linearly until no obstacle lies within the search box, in
// which case the score is 0.
func (l *Layout) ObstacleProximity(c Cell) float64 {
	minDistance := -1

	for dx := -proximityRadius; dx <= proximityRadius; dx++ {
		for dy := -proximityRadius; dy <= proximityRadius; dy++ {
			pos := Cell{c.X + dx, c.Y + dy}
			if !l.Contains(pos) || !l.obstacles[pos] {
				continue
			}

			distance := intutils.Abs(dx) + intutils.Abs(dy)
			if minDistance < 0 || distance < minDistance {
				minDistance = distance
			}
		}
	}

	if minDistance < 0 {
		return 0
	}
	return math.Max(0, 1-float64(minDistance)*proximityFalloff)
}

// String returns the layout's occupancy grid. Obstacles are rendered
// as 1, the goal as 2, and the starting position as 3.
func (l *Layout) String() string {
	grid := mat.NewDense(l.height, l.width, nil)
	for c := range l.obstacles {
		grid.Set(c.Y, c.X, 1)
	}
	grid.Set(l.goal.Y, l.goal.X, 2)
	grid.Set(l.start.Y, l.start.X, 3)

	return matutils.Format(grid)
}
