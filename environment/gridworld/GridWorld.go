// Package gridworld implements episodic goal-reaching environments on
// bounded grids with optional continuous scene actuation
package gridworld

import (
	"fmt"
	"log"
	"time"

	"github.com/fogleman/gg"
	"github.com/samuelfneumann/gogrid/bezier"
	env "github.com/samuelfneumann/gogrid/environment"
	"github.com/samuelfneumann/gogrid/scene"
	ts "github.com/samuelfneumann/gogrid/timestep"
	"github.com/samuelfneumann/gogrid/utils/intutils"
	"github.com/samuelfneumann/gogrid/utils/matutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Actions available in a GridWorld. Up decreases the agent's Y
// coordinate and Down increases it, so the origin is the top-left
// corner of the grid.
const (
	Up int = iota
	Down
	Left
	Right
	Stay
)

const (
	// DefaultVelocity is the speed at which the actuated body
	// traverses paths in the scene, in distance units per second of
	// simulated time
	DefaultVelocity float64 = 0.08

	// DefaultPacing is the delay inserted between consecutive
	// actuation updates while following a path
	DefaultPacing time.Duration = 50 * time.Millisecond
)

const (
	// Side length of the square arena a scene models
	sceneSpan float64 = 5.0

	// Height above the arena floor at which path control points are
	// placed
	pathHeight float64 = 0.05

	// Height at which the actuated body travels when the scene does
	// not report one
	actuatorHeight float64 = 0.12

	// Perpendicular offset applied to each path control point so
	// consecutive motions arc rather than overlap
	curveOffset float64 = 0.02

	// Diagnostics reported when a step fails and the episode is
	// abandoned
	errorDistance int     = 999
	errorReward   float64 = -0.1
)

// ActionName returns a human-readable name for action a
func ActionName(a int) string {
	switch a {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	case Stay:
		return "STAY"
	default:
		return "UNKNOWN"
	}
}

// StepInfo holds diagnostics describing the most recent step taken in
// a GridWorld
type StepInfo struct {
	ManhattanDistance    int
	ActionName           string
	ManhattanImprovement int
	ObstacleProximity    float64
}

// GridWorld implements a single-agent episodic environment on a
// bounded grid of cells. An agent moves through the grid one cell at a
// time, observing the window of cells around itself, and is rewarded
// by the environment's Task. Moves that would leave the grid are
// clamped at the boundary.
//
// A GridWorld may be paired with a continuous scene. The scene is then
// populated with the obstacles and goal of the generated layout, and
// each discrete move is actuated by sweeping a body through the scene
// along a Bezier path between the corresponding continuous positions.
// Scene failures after construction never fail the environment: the
// GridWorld degrades to purely discrete operation and keeps running.
type GridWorld struct {
	env.Task
	layout *Layout

	visionRadius int
	discount     float64
	position     Cell
	terminated   bool
	currentStep  ts.TimeStep
	lastInfo     StepInfo

	sc          scene.Scene
	mapper      *scene.Mapper
	curve       *bezier.Curve
	follower    *bezier.Follower
	sceneActive bool
}

// New creates a GridWorld with a procedurally generated layout on a
// width × height grid, returning the environment and its first
// timestep. Generation is deterministic given seed.
//
// If sc is non-nil the layout is generated by placing objects in the
// scene and rasterizing their footprints onto the grid. If the scene
// cannot be started or populated, the GridWorld falls back to purely
// discrete generation.
func New(t env.Task, width, height, visionRadius int, seed uint64,
	discount float64, sc scene.Scene) (env.Environment, ts.TimeStep, error) {
	if width <= 0 || height <= 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: dimensions must be "+
			"positive, got (%d, %d)", width, height)
	}
	if visionRadius < 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: vision radius must be "+
			"non-negative, got %d", visionRadius)
	}

	source := rand.NewSource(seed)

	var layout *Layout
	var mapper *scene.Mapper

	if sc != nil {
		var err error
		mapper, err = scene.NewMapper(sceneSpan, width, height, pathHeight)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
		}

		if err := sc.Start(); err != nil {
			log.Printf("new: could not start scene, continuing without "+
				"scene actuation: %v", err)
			sc = nil
		} else if layout, err = GenerateScene(width, height, source, sc,
			mapper); err != nil {
			log.Printf("new: could not generate scene layout, continuing "+
				"without scene actuation: %v", err)
			if err := sc.Teardown(); err != nil {
				log.Printf("new: could not tear down scene: %v", err)
			}
			sc = nil
			layout = nil
		}
	}

	if layout == nil {
		var err error
		layout, err = Generate(width, height, source)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("new: could not generate "+
				"layout: %v", err)
		}
	}

	return newFromLayout(t, layout, visionRadius, discount, sc, mapper)
}

// NewWithLayout creates a GridWorld on a fixed, caller-provided
// layout. If sc is non-nil the scene is started and the agent's moves
// are actuated in it, but no obstacle or goal objects are created.
func NewWithLayout(t env.Task, layout *Layout, visionRadius int,
	discount float64, sc scene.Scene) (env.Environment, ts.TimeStep, error) {
	if layout == nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newWithLayout: no layout given")
	}
	if visionRadius < 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("newWithLayout: vision radius "+
			"must be non-negative, got %d", visionRadius)
	}

	var mapper *scene.Mapper
	if sc != nil {
		var err error
		mapper, err = scene.NewMapper(sceneSpan, layout.width, layout.height,
			pathHeight)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("newWithLayout: %v", err)
		}

		if err := sc.Start(); err != nil {
			log.Printf("newWithLayout: could not start scene, continuing "+
				"without scene actuation: %v", err)
			sc = nil
		}
	}

	return newFromLayout(t, layout, visionRadius, discount, sc, mapper)
}

// newFromLayout finishes construction once a layout exists
func newFromLayout(t env.Task, layout *Layout, visionRadius int,
	discount float64, sc scene.Scene, mapper *scene.Mapper) (env.Environment,
	ts.TimeStep, error) {

	task, ok := t.(*ReachGoal)
	if ok {
		task.Register(layout)
	}

	start := t.Start()
	if start.Len() != 2 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: starting positions "+
			"must be 2-dimensional, got %d-dimensional", start.Len())
	}

	g := &GridWorld{
		Task:         t,
		layout:       layout,
		visionRadius: visionRadius,
		discount:     discount,
		position:     Cell{int(start.AtVec(0)), int(start.AtVec(1))},
		sc:           sc,
		mapper:       mapper,
		sceneActive:  sc != nil,
	}
	if !layout.Contains(g.position) {
		return nil, ts.TimeStep{}, fmt.Errorf("new: starting position %v "+
			"out of bounds", g.position)
	}

	if g.sceneActive {
		follower, err := bezier.NewFollower(sc, DefaultVelocity,
			DefaultPacing)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
		}
		g.follower = follower

		height := actuatorHeight
		if err := g.placeActuator(); err != nil {
			log.Printf("new: could not position actuated body, continuing "+
				"without scene actuation: %v", err)
			g.sceneActive = false
		} else if pose, err := g.sc.ActuatorPose(); err == nil {
			height = pose.Position.Z
		}

		if g.sceneActive {
			g.seedCurve(height)
		}
	}

	obs := g.observe()
	step := ts.New(ts.First, 0, discount, obs, 0)
	g.currentStep = step

	return g, step, nil
}

// Step takes one environment step with the given single-element
// action, which must be one of Up, Down, Left, Right, or Stay. The
// returned boolean indicates whether the new timestep is the last in
// the episode.
//
// If the step fails irrecoverably, the episode is abandoned: Step
// returns a terminal timestep with a zero observation and reward
// errorReward rather than an error, and the environment must be Reset
// before stepping again.
func (g *GridWorld) Step(action *mat.VecDense) (step ts.TimeStep, last bool,
	err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("step: recovered from panic, abandoning episode: %v",
				rec)
			step, last, err = g.abandonEpisode()
		}
	}()

	if g.terminated {
		return ts.TimeStep{}, false, fmt.Errorf("step: environment must " +
			"be Reset after the episode ends")
	}
	if action.Len() > 1 {
		return ts.TimeStep{}, false, fmt.Errorf("step: actions must be " +
			"1-dimensional")
	}

	a := int(action.AtVec(0))
	if a < Up || a > Stay {
		return ts.TimeStep{}, false, fmt.Errorf("step: invalid action %d", a)
	}

	prev := g.position
	g.position = g.move(prev, a)

	if g.sceneActive {
		g.actuate(a, g.position)
	}

	nextState := g.observe()

	reward := g.GetReward(g.CurrentTimeStep().Observation, action, nextState)
	nextStep := ts.New(ts.Mid, reward, g.discount, nextState,
		g.CurrentTimeStep().Number+1)

	last = g.End(&nextStep)

	g.updateInfo(prev, g.position, a)
	g.currentStep = nextStep
	g.terminated = last

	return nextStep, last, nil
}

// move returns the cell reached by taking action a from c, clamped to
// the grid boundary
func (g *GridWorld) move(c Cell, a int) Cell {
	next := c
	switch a {
	case Up:
		next.Y--
	case Down:
		next.Y++
	case Left:
		next.X--
	case Right:
		next.X++
	}

	next.X = intutils.Clip(next.X, 0, g.layout.width-1)
	next.Y = intutils.Clip(next.Y, 0, g.layout.height-1)
	return next
}

// actuate sweeps the actuated body through the scene to the continuous
// position of cell next. The body follows a Bezier curve through the
// recent control points, each offset perpendicular to its action so
// that consecutive motions arc. Actuation failures disable the scene
// but never fail the step.
func (g *GridWorld) actuate(a int, next Cell) {
	world, ok := g.mapper.ToWorld(next.X, next.Y)
	if !ok {
		log.Printf("step: position %v has no world coordinate", next)
		return
	}

	world.X, world.Y = curveTarget(a, world.X, world.Y)
	world.Z = pathHeight

	pose := scene.Identity()
	pose.Position = world
	g.curve.Append(pose)

	trace, err := g.sc.TracePath(g.curve.Points())
	if err != nil {
		log.Printf("step: could not trace path: %v", err)
		trace = scene.NilHandle
	}

	if err := g.follower.Follow(g.curve); err != nil {
		log.Printf("step: path following failed, continuing without "+
			"scene actuation: %v", err)
		g.sceneActive = false
	}

	if trace != scene.NilHandle {
		if err := g.sc.RemoveObject(trace); err != nil {
			log.Printf("step: could not remove path trace: %v", err)
		}
	}

	g.curve.Prune(2)
}

// curveTarget offsets the control point for a move so that the path
// into it arcs perpendicular to the direction of travel
func curveTarget(a int, x, y float64) (float64, float64) {
	switch a {
	case Up:
		x += curveOffset
	case Down:
		x -= curveOffset
	case Left:
		y += curveOffset
	case Right:
		y -= curveOffset
	}
	return x, y
}

// abandonEpisode ends the episode after an irrecoverable failure,
// producing a terminal timestep with a zero observation
func (g *GridWorld) abandonEpisode() (ts.TimeStep, bool, error) {
	r := g.visionRadius
	size := (2*r+1)*(2*r+1) + 4
	obs := mat.NewVecDense(size, nil)

	step := ts.New(ts.Last, errorReward, g.discount, obs,
		g.currentStep.Number+1)

	g.currentStep = step
	g.terminated = true
	g.lastInfo = StepInfo{
		ManhattanDistance: errorDistance,
		ActionName:        "ERROR",
	}

	return step, true, nil
}

// updateInfo records the diagnostics of the step from prev to next
func (g *GridWorld) updateInfo(prev, next Cell, a int) {
	prevDistance := manhattan(prev, g.layout.goal)
	nextDistance := manhattan(next, g.layout.goal)

	g.lastInfo = StepInfo{
		ManhattanDistance:    nextDistance,
		ActionName:           ActionName(a),
		ManhattanImprovement: prevDistance - nextDistance,
		ObstacleProximity:    g.layout.ObstacleProximity(next),
	}
}

// Reset resets the environment to the start of a new episode. The
// layout is unchanged; only the agent returns to its starting
// position.
func (g *GridWorld) Reset() (ts.TimeStep, error) {
	start := g.Start()
	if start.Len() != 2 {
		return ts.TimeStep{}, fmt.Errorf("reset: starting positions must "+
			"be 2-dimensional, got %d-dimensional", start.Len())
	}

	g.position = Cell{int(start.AtVec(0)), int(start.AtVec(1))}
	g.terminated = false
	g.lastInfo = StepInfo{}

	if g.sceneActive {
		if err := g.placeActuator(); err != nil {
			log.Printf("reset: could not reposition actuated body, "+
				"continuing without scene actuation: %v", err)
			g.sceneActive = false
		} else {
			g.seedCurve(g.curve.Height())
		}
	}

	obs := g.observe()
	step := ts.New(ts.First, 0, g.discount, obs, 0)
	g.currentStep = step

	return step, nil
}

// placeActuator moves the actuated body to the continuous position of
// the agent's cell
func (g *GridWorld) placeActuator() error {
	world, ok := g.mapper.ToWorld(g.position.X, g.position.Y)
	if !ok {
		return fmt.Errorf("position %v has no world coordinate", g.position)
	}
	world.Z = actuatorHeight

	pose := scene.Identity()
	pose.Position = world
	return g.sc.MoveActuator(pose)
}

// seedCurve starts a fresh path curve at the agent's current cell
func (g *GridWorld) seedCurve(height float64) {
	g.curve = bezier.New(height)

	world, ok := g.mapper.ToWorld(g.position.X, g.position.Y)
	if !ok {
		return
	}
	world.Z = pathHeight

	pose := scene.Identity()
	pose.Position = world
	g.curve.Append(pose)
}

// observe returns the observation vector for the agent's current
// position: the (2r+1) × (2r+1) window of cells centred on the agent
// in row-major order, where r is the vision radius, followed by the
// agent's and the goal's coordinates. Cells are encoded as 1 for an
// obstacle, 2 for the goal, and 0 otherwise. Window positions beyond
// the boundary are clamped to the nearest cell, so edge observations
// repeat the boundary cells.
func (g *GridWorld) observe() *mat.VecDense {
	r := g.visionRadius
	side := 2*r + 1
	obs := make([]float64, 0, side*side+4)

	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c := Cell{
				X: intutils.Clip(g.position.X+dx, 0, g.layout.width-1),
				Y: intutils.Clip(g.position.Y+dy, 0, g.layout.height-1),
			}

			switch {
			case g.layout.IsObstacle(c):
				obs = append(obs, 1.0)
			case c == g.layout.goal:
				obs = append(obs, 2.0)
			default:
				obs = append(obs, 0.0)
			}
		}
	}

	obs = append(obs,
		float64(g.position.X),
		float64(g.position.Y),
		float64(g.layout.goal.X),
		float64(g.layout.goal.Y),
	)

	return mat.NewVecDense(len(obs), obs)
}

// CurrentTimeStep returns the last timestep of the environment
func (g *GridWorld) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// Info returns the diagnostics of the most recent step. Before the
// first step of an episode, the zero StepInfo is returned.
func (g *GridWorld) Info() StepInfo {
	return g.lastInfo
}

// SceneActive returns whether the environment is still actuating moves
// in a continuous scene
func (g *GridWorld) SceneActive() bool {
	return g.sceneActive
}

// SetVelocity sets the speed at which the actuated body traverses
// paths in the scene
func (g *GridWorld) SetVelocity(v float64) error {
	if !g.sceneActive {
		return nil
	}
	return g.follower.SetVelocity(v)
}

// SetPacing sets the delay inserted between consecutive actuation
// updates
func (g *GridWorld) SetPacing(d time.Duration) {
	if g.sceneActive {
		g.follower.SetPacing(d)
	}
}

// ActionSpec returns the action specification of the environment
func (g *GridWorld) ActionSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{float64(Up)})
	upperBound := mat.NewVecDense(1, []float64{float64(Stay)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound, env.Discrete)
}

// ObservationSpec returns the observation specification of the
// environment
func (g *GridWorld) ObservationSpec() env.Spec {
	size := (2*g.visionRadius+1)*(2*g.visionRadius+1) + 4
	shape := mat.NewVecDense(size, nil)

	lower := make([]float64, size)
	upper := make([]float64, size)
	for i := 0; i < size-4; i++ {
		upper[i] = 2.0
	}
	upper[size-4] = float64(g.layout.width - 1)
	upper[size-3] = float64(g.layout.height - 1)
	upper[size-2] = float64(g.layout.width - 1)
	upper[size-1] = float64(g.layout.height - 1)

	lowerBound := mat.NewVecDense(size, lower)
	upperBound := mat.NewVecDense(size, upper)

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Discrete)
}

// DiscountSpec returns the discounting specification of the
// environment
func (g *GridWorld) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{g.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, lowerBound,
		env.Discrete)
}

// Close releases the environment's scene resources, removing the
// objects its layout created and tearing the scene down. Close is a
// no-op for purely discrete GridWorlds.
func (g *GridWorld) Close() error {
	if g.sc == nil {
		return nil
	}

	for _, handle := range g.layout.Handles() {
		if err := g.sc.RemoveObject(handle); err != nil {
			log.Printf("close: could not remove scene object: %v", err)
		}
	}
	g.sceneActive = false

	if err := g.sc.Teardown(); err != nil {
		return fmt.Errorf("close: could not tear down scene: %v", err)
	}
	return nil
}

// String returns the occupancy grid of the environment. Obstacles are
// rendered as 1, the goal as 2, and the agent as 3.
func (g *GridWorld) String() string {
	grid := mat.NewDense(g.layout.height, g.layout.width, nil)
	for c := range g.layout.obstacles {
		grid.Set(c.Y, c.X, 1)
	}
	grid.Set(g.layout.goal.Y, g.layout.goal.X, 2)
	grid.Set(g.position.Y, g.position.X, 3)

	return matutils.Format(grid)
}

// Render draws the environment to a PNG image at path. Obstacles are
// drawn red, the goal green, and the agent blue.
func (g *GridWorld) Render(path string) error {
	const cellSize = 20

	width := g.layout.width * cellSize
	height := g.layout.height * cellSize

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.8, 0.2, 0.2)
	for _, c := range g.layout.Obstacles() {
		dc.DrawRectangle(float64(c.X*cellSize), float64(c.Y*cellSize),
			cellSize, cellSize)
	}
	dc.Fill()

	goal := g.layout.goal
	dc.SetRGB(0.2, 0.7, 0.2)
	dc.DrawRectangle(float64(goal.X*cellSize), float64(goal.Y*cellSize),
		cellSize, cellSize)
	dc.Fill()

	dc.SetRGB(0.2, 0.3, 0.8)
	dc.DrawCircle(float64(g.position.X*cellSize)+cellSize/2,
		float64(g.position.Y*cellSize)+cellSize/2, cellSize/2-2)
	dc.Fill()

	dc.SetRGB(0.85, 0.85, 0.85)
	for x := 0; x <= g.layout.width; x++ {
		dc.DrawLine(float64(x*cellSize), 0, float64(x*cellSize),
			float64(height))
	}
	for y := 0; y <= g.layout.height; y++ {
		dc.DrawLine(0, float64(y*cellSize), float64(width),
			float64(y*cellSize))
	}
	dc.Stroke()

	return dc.SavePNG(path)
}
