// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Field      FieldConfig      `yaml:"field"`
	Shadows    ShadowConfig     `yaml:"shadows"`
	Population PopulationConfig `yaml:"population"`
	Engine     EngineConfig     `yaml:"engine"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Species    []SpeciesConfig  `yaml:"species"`
}

// FieldConfig holds the resource landscape parameters.
type FieldConfig struct {
	Width                 float64 `yaml:"width"`
	Height                float64 `yaml:"height"`
	GridSize              float64 `yaml:"grid_size"`               // Cell edge length in world units
	MaxResourceDifference float64 `yaml:"max_resource_difference"` // Max step between neighbouring cells, [0,1]
}

// ShadowConfig holds static (terrain) shadow parameters.
type ShadowConfig struct {
	Count   int     `yaml:"count"`
	MinSize float64 `yaml:"min_size"`
	MaxSize float64 `yaml:"max_size"`
}

// PopulationConfig holds initial population parameters.
type PopulationConfig struct {
	Initial int `yaml:"initial"` // Random plants seeded at startup
}

// EngineConfig holds tick parameters supplied by the caller each step.
type EngineConfig struct {
	NutrientReturnRatio float64 `yaml:"nutrient_return_ratio"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow int `yaml:"stats_window"` // Ticks per stats window
}

// RangeConfig is a closed-open interval sampled uniformly.
type RangeConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// RequirementConfig describes a resource need that scales with plant radius.
type RequirementConfig struct {
	Base      float64 `yaml:"base"`
	PerRadius float64 `yaml:"per_radius"`
}

// SpeciesConfig defines one plant species.
type SpeciesConfig struct {
	Name                string            `yaml:"name"`
	Preference          string            `yaml:"preference"` // sun, shade or neutral
	InitialRadius       RangeConfig       `yaml:"initial_radius"`
	InitialHeight       RangeConfig       `yaml:"initial_height"`
	GrowthRate          RangeConfig       `yaml:"growth_rate"`
	MaxAge              RangeConfig       `yaml:"max_age"`
	Aggressiveness      RangeConfig       `yaml:"aggressiveness"`
	NutrientRequirement RequirementConfig `yaml:"nutrient_requirement"`
	WaterRequirement    RequirementConfig `yaml:"water_requirement"`
	ReproduceRadius     float64           `yaml:"reproduce_radius"`
	OffspringCount      RangeConfig       `yaml:"offspring_count"` // floor(uniform draw)
	Color               string            `yaml:"color"`
	InnerColor          string            `yaml:"inner_color"`
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. A species list in the
// user file replaces the default list.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the field constructor contract and the species table.
func (c *Config) Validate() error {
	var errs []error
	f := c.Field
	if f.Width <= 0 || f.Height <= 0 {
		errs = append(errs, fmt.Errorf("field: width and height must be positive, got %gx%g", f.Width, f.Height))
	}
	if f.GridSize <= 0 {
		errs = append(errs, fmt.Errorf("field: grid_size must be positive, got %g", f.GridSize))
	}
	if f.MaxResourceDifference < 0 || f.MaxResourceDifference > 1 {
		errs = append(errs, fmt.Errorf("field: max_resource_difference must be in [0,1], got %g", f.MaxResourceDifference))
	}

	s := c.Shadows
	if s.Count < 0 {
		errs = append(errs, fmt.Errorf("shadows: count must be >= 0, got %d", s.Count))
	}
	if s.MinSize < 0 || s.MaxSize < s.MinSize {
		errs = append(errs, fmt.Errorf("shadows: need 0 <= min_size <= max_size, got [%g,%g]", s.MinSize, s.MaxSize))
	}

	if c.Population.Initial < 0 {
		errs = append(errs, fmt.Errorf("population: initial must be >= 0, got %d", c.Population.Initial))
	}
	if c.Engine.NutrientReturnRatio < 0 {
		errs = append(errs, fmt.Errorf("engine: nutrient_return_ratio must be >= 0, got %g", c.Engine.NutrientReturnRatio))
	}

	if len(c.Species) == 0 {
		errs = append(errs, errors.New("species: at least one species is required"))
	}
	seen := make(map[string]bool, len(c.Species))
	for i := range c.Species {
		sp := &c.Species[i]
		if sp.Name == "" {
			errs = append(errs, fmt.Errorf("species[%d]: name is required", i))
			continue
		}
		if seen[sp.Name] {
			errs = append(errs, fmt.Errorf("species %q: duplicate name", sp.Name))
		}
		seen[sp.Name] = true

		for _, r := range []struct {
			name string
			rng  RangeConfig
		}{
			{"initial_radius", sp.InitialRadius},
			{"initial_height", sp.InitialHeight},
			{"growth_rate", sp.GrowthRate},
			{"max_age", sp.MaxAge},
			{"aggressiveness", sp.Aggressiveness},
			{"offspring_count", sp.OffspringCount},
		} {
			if r.rng.Min < 0 || r.rng.Max < r.rng.Min {
				errs = append(errs, fmt.Errorf("species %q: %s must satisfy 0 <= min <= max, got [%g,%g]", sp.Name, r.name, r.rng.Min, r.rng.Max))
			}
		}
		if sp.ReproduceRadius < 0 {
			errs = append(errs, fmt.Errorf("species %q: reproduce_radius must be >= 0", sp.Name))
		}
	}

	return errors.Join(errs...)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Clone returns a deep copy suitable for independent modification.
func (c *Config) Clone() *Config {
	out := *c
	out.Species = append([]SpeciesConfig(nil), c.Species...)
	return &out
}
