package search

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config tunes the genetic search. Validate clamps every field into its
// usable range; start from DefaultConfig for sensible values.
type Config struct {
	Generations int `yaml:"generations"`
	Population  int `yaml:"population"`
	// Survivors is how many of the best genes carry over each generation.
	// One extra survivor is picked at random from the rest.
	Survivors        int `yaml:"survivors"`
	LocalSearchEvery int `yaml:"local_search_every"`

	MoveRate   float64 `yaml:"move_rate"`
	MoveSigma  float64 `yaml:"move_sigma"`
	AddRate    float64 `yaml:"add_rate"`
	RemoveRate float64 `yaml:"remove_rate"`
	BoostRate  float64 `yaml:"boost_rate"`

	// MaxTime caps every evaluation in simulated seconds.
	MaxTime          float64 `yaml:"max_time"`
	CombatTimeWeight float64 `yaml:"combat_time_weight"`
	// BiasWindow is the adjusted-time difference, in seconds, inside which
	// the higher income rate wins.
	BiasWindow float64 `yaml:"bias_window"`

	Workers int    `yaml:"workers"`
	Seed    uint64 `yaml:"seed"`
}

// DefaultConfig returns settings that converge on small targets within a
// few hundred milliseconds.
func DefaultConfig() Config {
	return Config{
		Generations:      60,
		Population:       24,
		Survivors:        6,
		LocalSearchEvery: 10,
		MoveRate:         0.2,
		MoveSigma:        3,
		AddRate:          0.25,
		RemoveRate:       0.3,
		BoostRate:        0.1,
		MaxTime:          1200,
		CombatTimeWeight: 0.2,
		BiasWindow:       1,
		Workers:          4,
		Seed:             1,
	}
}

// Validate clamps every field to its usable range.
func (c *Config) Validate() {
	c.Generations = clampInt(c.Generations, 1, 10000)
	c.Population = clampInt(c.Population, 2, 1000)
	c.Survivors = clampInt(c.Survivors, 1, c.Population-1)
	c.LocalSearchEvery = clampInt(c.LocalSearchEvery, 0, c.Generations)
	c.MoveRate = clamp(c.MoveRate, 0, 1)
	c.MoveSigma = clamp(c.MoveSigma, 0.5, 50)
	c.AddRate = clamp(c.AddRate, 0, 1)
	c.RemoveRate = clamp(c.RemoveRate, 0, 1)
	c.BoostRate = clamp(c.BoostRate, 0, 1)
	c.MaxTime = clamp(c.MaxTime, 0, 7200)
	c.CombatTimeWeight = clamp(c.CombatTimeWeight, 0, 10)
	c.BiasWindow = clamp(c.BiasWindow, 0, 30)
	c.Workers = clampInt(c.Workers, 1, 256)
}

// LoadConfig reads a YAML file over DefaultConfig, so the file only needs
// the fields it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read search config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse search config %s: %w", path, err)
	}
	cfg.Validate()
	return cfg, nil
}

// clampInt restricts v to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// clamp restricts v to [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
