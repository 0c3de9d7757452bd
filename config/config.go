// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every configuration error. Configuration errors are
// fatal and are reported before any simulation state is created.
var ErrInvalid = errors.New("invalid configuration")

// Environment variables consulted by ApplyEnv.
const (
	EnvSeed          = "MULTIVERSE_SEED"
	EnvParticleCount = "MULTIVERSE_PARTICLE_COUNT"
	EnvBackend       = "MULTIVERSE_GRAVITY_BACKEND"
	EnvTimestep      = "MULTIVERSE_TIMESTEP"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Universe  UniverseConfig  `yaml:"universe"`
	Gravity   GravityConfig   `yaml:"gravity"`
	Cadence   CadenceConfig   `yaml:"cadence"`
	Regions   RegionsConfig   `yaml:"regions"`
	Life      LifeConfig      `yaml:"life"`
	Genome    GenomeConfig    `yaml:"genome"`
	Biosphere BiosphereConfig `yaml:"biosphere"`
	Soul      SoulConfig      `yaml:"soul"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-" json:"-"`
}

// UniverseConfig holds Big Bang and cosmology parameters.
type UniverseConfig struct {
	ParticleCount      int     `yaml:"particle_count" validate:"gt=0"`
	Seed               int64   `yaml:"seed"`
	BigBangVelocity    float64 `yaml:"big_bang_velocity" validate:"gt=0"`
	DarkMatterFraction float64 `yaml:"dark_matter_fraction" validate:"gte=0,lte=1"`
	MaxEntropy         float64 `yaml:"max_entropy" validate:"gt=0"`
	Timestep           float64 `yaml:"timestep" validate:"gt=0"`           // Gyr per tick at time scale 1
	InitialTemperature float64 `yaml:"initial_temperature" validate:"gt=0"` // K at spawn
}

// GravityConfig holds gravity solver parameters.
type GravityConfig struct {
	Backend                string  `yaml:"backend" validate:"oneof=hybrid direct"`
	GravityScale           float64 `yaml:"gravity_scale" validate:"gte=0"`
	Softening              float64 `yaml:"softening" validate:"gt=0"`
	NearFieldK             int     `yaml:"near_field_k" validate:"gt=0"`
	FarFieldGridResolution int     `yaml:"far_field_grid_resolution" validate:"gt=0,lte=64"`
	FarFieldTheta          float64 `yaml:"far_field_theta" validate:"gt=0"`
	VelocityDamping        float64 `yaml:"velocity_damping" validate:"gte=0"`
	CoolingRate            float64 `yaml:"cooling_rate" validate:"gte=0"`
	MaxAcceleration        float64 `yaml:"max_acceleration" validate:"gt=0"`
	Workers                int     `yaml:"workers" validate:"gte=0"` // 0 = GOMAXPROCS
}

// CadenceConfig holds tick cadences for periodic work.
type CadenceConfig struct {
	EntropyInterval    int     `yaml:"entropy_interval" validate:"gt=0"`
	LODInterval        int     `yaml:"lod_interval" validate:"gt=0"`
	CompactionInterval int     `yaml:"compaction_interval" validate:"gt=0"`
	StatsRefreshAge    float64 `yaml:"stats_refresh_age" validate:"gt=0"` // Gyr
}

// RegionsConfig holds region generation parameters.
type RegionsConfig struct {
	MaxStars          int     `yaml:"max_stars" validate:"gt=0"`
	MassPoints        int     `yaml:"mass_points" validate:"gt=0"`
	DensitySigma      float64 `yaml:"density_sigma" validate:"gte=0"`
	GenerationWorkers int     `yaml:"generation_workers" validate:"gte=0"` // 0 = GOMAXPROCS
}

// LifeConfig holds life emergence parameters.
type LifeConfig struct {
	BaseRate       float64 `yaml:"base_rate" validate:"gte=0,lte=1"`
	MinProbability float64 `yaml:"min_probability" validate:"gte=0,lte=1"`
	MaxProbability float64 `yaml:"max_probability" validate:"gte=0,lte=1,gtefield=MinProbability"`
	HabitableDelay float64 `yaml:"habitable_delay" validate:"gte=0"` // Gyr before life can emerge
}

// GenomeConfig holds genome synthesis parameters.
type GenomeConfig struct {
	ToolUseThreshold  float64 `yaml:"tool_use_threshold" validate:"gt=0,lte=1"`
	MaxRepairAttempts int     `yaml:"max_repair_attempts" validate:"gte=0"`
}

// BiosphereConfig holds creature population parameters.
type BiosphereConfig struct {
	MaxPopulation int     `yaml:"max_population" validate:"gt=0"` // per planet
	MutationRate  float64 `yaml:"mutation_rate" validate:"gte=0,lte=1"`
	BaseLifespan  float64 `yaml:"base_lifespan" validate:"gt=0"` // Gyr
}

// SoulConfig holds cross-cycle bias parameters.
type SoulConfig struct {
	StabilityThreshold float64 `yaml:"stability_threshold" validate:"gte=0,lte=1"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int `yaml:"stats_window" validate:"gt=0"` // ticks
	ProfileWindow       int `yaml:"profile_window" validate:"gt=0"`
	EventHistorySize    int `yaml:"event_history_size" validate:"gt=0"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Seed              uint64 // Universe.Seed in RNG fabric space
	FarFieldCells     int    // resolution³
	Workers           int    // resolved gravity worker count
	GenerationWorkers int    // resolved region generation worker count
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
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
			return nil, fmt.Errorf("%w: parsing config file: %v", ErrInvalid, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads envFile (if present) into the environment, applies
// MULTIVERSE_* overrides and revalidates.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv(EnvSeed); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvSeed, v, err)
		}
		c.Universe.Seed = seed
	}
	if v, ok := os.LookupEnv(EnvParticleCount); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvParticleCount, v, err)
		}
		c.Universe.ParticleCount = n
	}
	if v, ok := os.LookupEnv(EnvBackend); ok {
		c.Gravity.Backend = v
	}
	if v, ok := os.LookupEnv(EnvTimestep); ok {
		dt, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvTimestep, v, err)
		}
		c.Universe.Timestep = dt
	}

	return c.Validate()
}

// Validate checks every range constraint and recomputes derived values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalid, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c.computeDerived()
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Seed = uint64(c.Universe.Seed)
	res := c.Gravity.FarFieldGridResolution
	c.Derived.FarFieldCells = res * res * res

	c.Derived.Workers = c.Gravity.Workers
	if c.Derived.Workers == 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
	c.Derived.GenerationWorkers = c.Regions.GenerationWorkers
	if c.Derived.GenerationWorkers == 0 {
		c.Derived.GenerationWorkers = runtime.GOMAXPROCS(0)
	}
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
