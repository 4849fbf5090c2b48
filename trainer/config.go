// Package trainer drives full training runs: it wires the environment, the
// agent, the replay buffer and the visit tracker together under a YAML
// config, logs progress, exports results and archives runs to sqlite.
package trainer

import (
	"fmt"
	"os"

	"golang.org/x/exp/constraints"
	"gopkg.in/yaml.v3"
)

// GridConfig describes the environment.
type GridConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	WallDensity float64 `yaml:"wall_density"`
	SimpleMaze  bool    `yaml:"simple_maze"`
	MaxSteps    int     `yaml:"max_steps"`
	StepPenalty float32 `yaml:"step_penalty"`
	GoalReward  float32 `yaml:"goal_reward"`
	WallPenalty float32 `yaml:"wall_penalty"`
	Stochastic  bool    `yaml:"stochastic"`
	ActionNoise float64 `yaml:"action_noise"`
}

// AgentConfig carries the Q-learning hyperparameters.
type AgentConfig struct {
	LearningRate   float64 `yaml:"learning_rate"`
	DiscountFactor float64 `yaml:"discount_factor"`
	Epsilon        float64 `yaml:"epsilon"`
	EpsilonDecay   float64 `yaml:"epsilon_decay"`
	EpsilonMin     float64 `yaml:"epsilon_min"`
}

// ReplayConfig controls prioritized experience replay.
type ReplayConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Capacity    int     `yaml:"capacity"`
	BatchSize   int     `yaml:"batch_size"`
	Frequency   int     `yaml:"frequency"` // replay every N environment steps
	Alpha       float64 `yaml:"alpha"`
	BetaStart   float64 `yaml:"beta_start"`
	BetaEnd     float64 `yaml:"beta_end"`
	AnnealSteps int     `yaml:"anneal_steps"`
	MinPriority float64 `yaml:"min_priority"`
}

// VisitsConfig controls adaptive exploration.
type VisitsConfig struct {
	Enabled              bool    `yaml:"enabled"`
	AdaptiveEpsilon      bool    `yaml:"adaptive_epsilon"`
	AdaptiveLearningRate bool    `yaml:"adaptive_learning_rate"`
	MinBonus             float64 `yaml:"min_bonus"`
	BonusDecay           float64 `yaml:"bonus_decay"`
}

// RunConfig controls the outer loop and outputs.
type RunConfig struct {
	Episodes    int    `yaml:"episodes"`
	Seed        int64  `yaml:"seed"`
	LogEvery    int    `yaml:"log_every"`
	OutDir      string `yaml:"out_dir"`
	ArchivePath string `yaml:"archive_path"` // empty disables the sqlite archive
}

// Config is the full training configuration.
type Config struct {
	Grid   GridConfig   `yaml:"grid"`
	Agent  AgentConfig  `yaml:"agent"`
	Replay ReplayConfig `yaml:"replay"`
	Visits VisitsConfig `yaml:"visits"`
	Run    RunConfig    `yaml:"run"`
}

// DefaultConfig returns a runnable configuration for a 10x10 grid.
func DefaultConfig() Config {
	return Config{
		Grid: GridConfig{
			Width: 10, Height: 10,
			MaxSteps:    400,
			StepPenalty: -0.01, GoalReward: 1.0, WallPenalty: -0.1,
		},
		Agent: AgentConfig{
			LearningRate: 0.1, DiscountFactor: 0.9,
			Epsilon: 1.0, EpsilonDecay: 0.995, EpsilonMin: 0.01,
		},
		Replay: ReplayConfig{
			Enabled: true, Capacity: 10000, BatchSize: 32, Frequency: 4,
			Alpha: 0.6, BetaStart: 0.4, BetaEnd: 1.0,
			AnnealSteps: 100000, MinPriority: 1e-6,
		},
		Visits: VisitsConfig{
			Enabled: true, AdaptiveEpsilon: true, AdaptiveLearningRate: true,
			MinBonus: 0.01, BonusDecay: 0.99,
		},
		Run: RunConfig{
			Episodes: 1000, Seed: 1, LogEvery: 100, OutDir: "out",
		},
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate fills zero fields with defaults and rejects values the engine
// cannot run with.
func (c *Config) Validate() error {
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return fmt.Errorf("grid: width and height must be positive")
	}
	if c.Grid.WallDensity < 0 || c.Grid.WallDensity > 1 {
		return fmt.Errorf("grid: wall_density %v out of [0,1]", c.Grid.WallDensity)
	}
	if c.Agent.LearningRate <= 0 || c.Agent.DiscountFactor < 0 || c.Agent.DiscountFactor > 1 {
		return fmt.Errorf("agent: bad learning_rate/discount_factor")
	}
	c.Agent.Epsilon = clamp(c.Agent.Epsilon, 0, 1)
	c.Agent.EpsilonMin = clamp(c.Agent.EpsilonMin, 0, c.Agent.Epsilon)

	if c.Replay.Enabled {
		if c.Replay.Capacity <= 0 {
			return fmt.Errorf("replay: capacity must be positive")
		}
		if c.Replay.BatchSize <= 0 {
			c.Replay.BatchSize = 32
		}
		if c.Replay.Frequency <= 0 {
			c.Replay.Frequency = 4
		}
		if c.Replay.MinPriority <= 0 {
			c.Replay.MinPriority = 1e-6
		}
	}
	if c.Run.Episodes <= 0 {
		return fmt.Errorf("run: episodes must be positive")
	}
	if c.Run.LogEvery <= 0 {
		c.Run.LogEvery = 100
	}
	if c.Run.OutDir == "" {
		c.Run.OutDir = "out"
	}
	return nil
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
