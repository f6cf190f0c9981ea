// Package envconfig provides configuration structs for configuring
// environments with default parameters and tasks. Environment
// configurations in this package are YAML serializable.
package envconfig

import (
	"fmt"
	"time"

	env "github.com/samuelfneumann/gogrid/environment"
	"github.com/samuelfneumann/gogrid/environment/gridworld"
	"github.com/samuelfneumann/gogrid/scene"
	ts "github.com/samuelfneumann/gogrid/timestep"
	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultWidth        int     = 40
	DefaultHeight       int     = 40
	DefaultVisionRadius int     = 2
	DefaultMaxSteps     int     = 100
	DefaultDiscount     float64 = 0.99
)

// Simulated seconds the in-memory scene advances per step
const memorySceneTick float64 = 0.05

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	GridWorld EnvName = "GridWorld"
)

// TaskName stores the tasks that can be configured with this package.
// The tasks that can be used with each environment are as follows:
//
//	Environment			Task
//	GridWorld			ReachGoal
type TaskName string

// Tasks available for configuration
const (
	ReachGoal TaskName = "ReachGoal"
)

// Config implements a specific configuration of a specific environment
// and specific task.
//
// The scene fields select how the environment's moves are actuated.
// When SceneAddr is set, the environment actuates in a remote
// simulator reached over a websocket at that address. Otherwise, when
// ContinuousScene is true, the environment actuates in an in-memory
// scene. When neither is set the environment is purely discrete.
type Config struct {
	Environment EnvName  `mapstructure:"environment"`
	Task        TaskName `mapstructure:"task"`

	Width        int     `mapstructure:"width"`
	Height       int     `mapstructure:"height"`
	VisionRadius int     `mapstructure:"vision_radius"`
	MaxSteps     int     `mapstructure:"max_steps"`
	Discount     float64 `mapstructure:"discount"`

	ContinuousScene bool    `mapstructure:"continuous_scene"`
	SceneAddr       string  `mapstructure:"scene_addr"`
	Velocity        float64 `mapstructure:"velocity"`
	PathDelayMS     int     `mapstructure:"path_delay_ms"`
}

// NewConfig returns a new environment Config with default vision
// radius and no scene actuation
func NewConfig(envName EnvName, taskName TaskName, width, height,
	maxSteps int, discount float64) Config {
	return Config{
		Environment:  envName,
		Task:         taskName,
		Width:        width,
		Height:       height,
		VisionRadius: DefaultVisionRadius,
		MaxSteps:     maxSteps,
		Discount:     discount,
	}
}

// FromYAML returns the Config stored in the YAML file at path.
// Omitted fields take their default values.
func FromYAML(path string) (Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")

	vp.SetDefault("environment", string(GridWorld))
	vp.SetDefault("task", string(ReachGoal))
	vp.SetDefault("width", DefaultWidth)
	vp.SetDefault("height", DefaultHeight)
	vp.SetDefault("vision_radius", DefaultVisionRadius)
	vp.SetDefault("max_steps", DefaultMaxSteps)
	vp.SetDefault("discount", DefaultDiscount)
	vp.SetDefault("path_delay_ms", 50)

	if err := vp.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("fromYAML: could not read config: %v",
			err)
	}

	var config Config
	if err := vp.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("fromYAML: could not unmarshal "+
			"config: %v", err)
	}

	return config, nil
}

// Create returns the environment described by the Config as well as
// the first timestep of the environment
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	switch c.Environment {
	case GridWorld:
		return c.createGridWorld(seed)
	}

	return nil, ts.TimeStep{}, fmt.Errorf("create: cannot create "+
		"environment %v, no such environment", c.Environment)
}

// createGridWorld is a factory for creating the GridWorld environment
// with the configured dimensions, task, and scene backend
func (c Config) createGridWorld(seed uint64) (env.Environment, ts.TimeStep,
	error) {
	var task env.Task
	switch c.Task {
	case ReachGoal:
		task = gridworld.NewReachGoal(c.MaxSteps)

	default:
		return nil, ts.TimeStep{}, fmt.Errorf("createGridWorld: GridWorld "+
			"environment has no task %v", c.Task)
	}

	sc, err := c.scene()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createGridWorld: %v", err)
	}

	e, step, err := gridworld.New(task, c.Width, c.Height, c.VisionRadius,
		seed, c.Discount, sc)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createGridWorld: %v", err)
	}

	if g, ok := e.(*gridworld.GridWorld); ok && sc != nil {
		if c.Velocity > 0 {
			if err := g.SetVelocity(c.Velocity); err != nil {
				return nil, ts.TimeStep{}, fmt.Errorf("createGridWorld: %v",
					err)
			}
		}
		if c.PathDelayMS >= 0 {
			g.SetPacing(time.Duration(c.PathDelayMS) * time.Millisecond)
		}
	}

	return e, step, nil
}

// scene returns the scene backend the Config selects, or nil for a
// purely discrete environment
func (c Config) scene() (scene.Scene, error) {
	if c.SceneAddr != "" {
		r, err := scene.NewRemote(c.SceneAddr)
		if err != nil {
			return nil, fmt.Errorf("could not connect to scene "+
				"simulator: %v", err)
		}
		return r, nil
	}

	if c.ContinuousScene {
		return scene.NewMemory(memorySceneTick), nil
	}

	return nil, nil
}
