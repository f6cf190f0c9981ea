package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/samuelfneumann/gogrid/environment"
	"github.com/samuelfneumann/gogrid/environment/envconfig"
	"github.com/samuelfneumann/gogrid/environment/gridworld"
	"github.com/samuelfneumann/gogrid/utils/floatutils"
	"github.com/samuelfneumann/gogrid/utils/progressbar"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	configPath string
	episodes   int
	seed       uint64
	workers    int
	outPath    string
)

func main() {
	rootCmd := &cobra.Command{
		Use: "gogrid",
		Short: "gogrid runs episodic gridworld environments with optional " +
			"continuous scene actuation",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run episodes of a configured environment under a uniform random policy",
		RunE:  run,
	}
	runCmd.Flags().StringVar(&configPath, "config", "",
		"path to a YAML environment configuration")
	runCmd.Flags().IntVar(&episodes, "episodes", 10,
		"number of episodes to run")
	runCmd.Flags().Uint64Var(&seed, "seed", 42,
		"seed for layout generation and the policy")
	runCmd.Flags().IntVar(&workers, "workers", 1,
		"number of environments run concurrently")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Draw a generated environment to a PNG image",
		RunE:  render,
	}
	renderCmd.Flags().StringVar(&configPath, "config", "",
		"path to a YAML environment configuration")
	renderCmd.Flags().Uint64Var(&seed, "seed", 42,
		"seed for layout generation")
	renderCmd.Flags().StringVar(&outPath, "out", "grid.png",
		"output image path")

	for _, envFile := range []string{
		".env",
		"../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.Execute()
}

// loadConfig returns the environment configuration selected by the
// --config flag, or the default configuration when the flag is unset.
// The GOGRID_SCENE_ADDR environment variable overrides the configured
// scene simulator address.
func loadConfig() (envconfig.Config, error) {
	var config envconfig.Config
	if configPath != "" {
		var err error
		config, err = envconfig.FromYAML(configPath)
		if err != nil {
			return envconfig.Config{}, err
		}
	} else {
		config = envconfig.NewConfig(envconfig.GridWorld,
			envconfig.ReachGoal, envconfig.DefaultWidth,
			envconfig.DefaultHeight, envconfig.DefaultMaxSteps,
			envconfig.DefaultDiscount)
	}

	if addr := os.Getenv("GOGRID_SCENE_ADDR"); addr != "" {
		config.SceneAddr = addr
	}

	return config, nil
}

func run(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	if episodes < 1 {
		return fmt.Errorf("run: episodes must be positive, got %d", episodes)
	}
	if workers < 1 {
		workers = 1
	}

	bar := progressbar.NewProgressBar(50, episodes, time.Second, true)
	bar.Display()

	// Each episode runs in its own environment, so episodes never
	// share state and may run concurrently
	returns := make([]float64, episodes)
	lengths := make([]float64, episodes)

	var group errgroup.Group
	group.SetLimit(workers)

	for i := 0; i < episodes; i++ {
		i := i
		group.Go(func() error {
			episodeReturn, steps, err := runEpisode(config, seed+uint64(i))
			if err != nil {
				return err
			}

			returns[i] = episodeReturn
			lengths[i] = float64(steps)
			bar.Increment()
			return nil
		})
	}

	err = group.Wait()
	bar.Close()
	if err != nil {
		return err
	}

	fmt.Printf("Episodes:     %d\n", episodes)
	fmt.Printf("Mean return:  %.3f\n", floats.Sum(returns)/float64(episodes))
	fmt.Printf("Return range: [%.3f, %.3f]\n", floatutils.Min(returns...),
		floatutils.Max(returns...))
	fmt.Printf("Mean length:  %.1f\n", floats.Sum(lengths)/float64(episodes))

	return nil
}

// runEpisode creates the configured environment and runs one episode
// under a uniform random policy, returning the episodic return and the
// number of steps taken
func runEpisode(config envconfig.Config, seed uint64) (float64, int, error) {
	e, step, err := config.Create(seed)
	if err != nil {
		return 0, 0, fmt.Errorf("run: could not create environment: %v", err)
	}
	defer closeEnv(e)

	rng := rand.New(rand.NewSource(seed))

	var episodeReturn float64
	var steps int
	for !step.Last() {
		action := mat.NewVecDense(1, []float64{
			float64(rng.Intn(gridworld.Stay + 1)),
		})

		step, _, err = e.Step(action)
		if err != nil {
			return 0, 0, fmt.Errorf("run: could not step environment: %v",
				err)
		}

		episodeReturn += step.Reward
		steps++
	}

	return episodeReturn, steps, nil
}

// closeEnv releases any scene resources the environment holds
func closeEnv(e environment.Environment) {
	if g, ok := e.(*gridworld.GridWorld); ok {
		if err := g.Close(); err != nil {
			log.Printf("run: could not close environment: %v", err)
		}
	}
}

func render(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	// A still image gains nothing from scene actuation
	config.SceneAddr = ""
	config.ContinuousScene = false

	e, _, err := config.Create(seed)
	if err != nil {
		return fmt.Errorf("render: could not create environment: %v", err)
	}

	g, ok := e.(*gridworld.GridWorld)
	if !ok {
		return fmt.Errorf("render: environment %v cannot be rendered",
			config.Environment)
	}

	if err := g.Render(outPath); err != nil {
		return fmt.Errorf("render: %v", err)
	}

	fmt.Println(g)
	fmt.Printf("wrote %v\n", outPath)

	return nil
}
