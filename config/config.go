// Package config provides configuration loading and access for the solver.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters.
type Config struct {
	Grid        GridConfig        `yaml:"grid"`
	Simulation  SimulationConfig  `yaml:"simulation"`
	Solver      SolverConfig      `yaml:"solver"`
	Blend       BlendConfig       `yaml:"blend"`
	Constraints ConstraintsConfig `yaml:"constraints"`
	Resample    ResampleConfig    `yaml:"resample"`
	Forces      ForcesConfig      `yaml:"forces"`
	Scene       SceneConfig       `yaml:"scene"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Export      ExportConfig      `yaml:"export"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds the MAC grid extents in cells.
type GridConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

// SimulationConfig holds top-level stepping parameters.
type SimulationConfig struct {
	Density  float64 `yaml:"density"`   // particle spacing in cell units
	StepSize float64 `yaml:"step_size"` // seconds per frame
	Frames   int     `yaml:"frames"`    // frames to simulate
	Verbose  bool    `yaml:"verbose"`
}

// SolverConfig holds pressure solve parameters.
type SolverConfig struct {
	Subcell   int     `yaml:"subcell"`   // 1 enables ghost-fluid free-surface terms
	Tolerance float64 `yaml:"tolerance"` // PCG residual target
}

// BlendConfig holds the PIC/FLIP mix.
type BlendConfig struct {
	PicFlipRatio float64 `yaml:"pic_flip_ratio"`
}

// ConstraintsConfig holds collision response parameters.
type ConstraintsConfig struct {
	ReFactor       float64 `yaml:"re_factor"`       // repulsion radius in particle spacings
	StuckOvershoot float64 `yaml:"stuck_overshoot"` // surface escape overshoot fraction
	BounceRetract  float64 `yaml:"bounce_retract"`  // fraction of hit distance kept on bounce
}

// ResampleConfig holds per-cell particle population bounds.
type ResampleConfig struct {
	MinPerCell        int     `yaml:"min_per_cell"`
	MaxPerCell        int     `yaml:"max_per_cell"`
	MaxChangeFraction float64 `yaml:"max_change_fraction"`
}

// ForcesConfig holds the constant external accelerations.
type ForcesConfig struct {
	Gravity [3]float64 `yaml:"gravity"`
}

// SceneConfig describes the implicit scene geometry in normalized [0,1]
// coordinates.
type SceneConfig struct {
	LiquidBoxes    []BoxConfig    `yaml:"liquid_boxes"`
	LiquidSpheres  []SphereConfig `yaml:"liquid_spheres"`
	SolidBoxes     []BoxConfig    `yaml:"solid_boxes"`
	SolidSpheres   []SphereConfig `yaml:"solid_spheres"`
	EmitEveryFrame bool           `yaml:"emit_every_frame"`
}

// BoxConfig is an axis-aligned box.
type BoxConfig struct {
	Min [3]float64 `yaml:"min"`
	Max [3]float64 `yaml:"max"`
}

// SphereConfig is a sphere.
type SphereConfig struct {
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow int `yaml:"perf_window"`
}

// ExportConfig holds particle export parameters.
type ExportConfig struct {
	Dir   string `yaml:"dir"`   // empty disables export
	Every int    `yaml:"every"` // export every Nth frame
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	MaxDim   float64 // longest grid axis
	CellSize float64 // 1 / MaxDim
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
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

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
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
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Grid.X < 3 || c.Grid.Y < 3 || c.Grid.Z < 3 {
		return fmt.Errorf("config: grid %dx%dx%d too small, need at least 3 cells per axis",
			c.Grid.X, c.Grid.Y, c.Grid.Z)
	}
	if c.Simulation.Density <= 0 {
		return fmt.Errorf("config: simulation.density must be positive, got %g", c.Simulation.Density)
	}
	if c.Simulation.StepSize <= 0 {
		return fmt.Errorf("config: simulation.step_size must be positive, got %g", c.Simulation.StepSize)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	m := c.Grid.X
	if c.Grid.Y > m {
		m = c.Grid.Y
	}
	if c.Grid.Z > m {
		m = c.Grid.Z
	}
	c.Derived.MaxDim = float64(m)
	c.Derived.CellSize = 1.0 / c.Derived.MaxDim
}

// WriteYAML saves the configuration to a file, for run reproducibility.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
