// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure returned from Load and Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
// The flat top-level keys are the options recognized by every front-end;
// nested sections hold tunables.
type Config struct {
	Width                 float64 `yaml:"width"`
	Height                float64 `yaml:"height"`
	MaxAgents             int     `yaml:"max_agents"`
	MaxResources          int     `yaml:"max_resources"`
	InitialAgents         int     `yaml:"initial_agents"`
	InitialResources      int     `yaml:"initial_resources"`
	ResourceSpawnRate     float64 `yaml:"resource_spawn_rate"` // spawns per virtual second
	TargetDurationMinutes float64 `yaml:"target_duration_minutes"`
	StabilityThreshold    float64 `yaml:"stability_threshold"`
	MinAgentCount         int     `yaml:"min_agent_count"` // healthy population band, lower edge
	MaxAgentCount         int     `yaml:"max_agent_count"` // healthy population band, upper edge
	UseDataOrientedEngine bool    `yaml:"use_data_oriented_engine"`
	SpeedMultiplier       float64 `yaml:"speed_multiplier"`
	Seed                  uint64  `yaml:"seed"`

	Physics      PhysicsConfig      `yaml:"physics"`
	Agent        AgentConfig        `yaml:"agent"`
	Combat       CombatConfig       `yaml:"combat"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Resource     ResourceConfig     `yaml:"resource"`
	Termination  TerminationConfig  `yaml:"termination"`
	Scoring      ScoringConfig      `yaml:"scoring"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Parallel     ParallelConfig     `yaml:"parallel"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds time step and neighborhood parameters.
type PhysicsConfig struct {
	BaseDT        float64 `yaml:"base_dt"`        // seconds per step before speed_multiplier
	GridCellSize  float64 `yaml:"grid_cell_size"` // spatial index bucket size
	ContactRadius float64 `yaml:"contact_radius"` // distance at which agents touch resources and each other
	MoveScale     float64 `yaml:"move_scale"`     // world units per second at speed gene 1.0
}

// AgentConfig holds agent energy and lifespan parameters.
type AgentConfig struct {
	InitialEnergy     float64 `yaml:"initial_energy"`
	MaxEnergy         float64 `yaml:"max_energy"`
	MaxAge            float64 `yaml:"max_age"`            // seconds; older agents die
	BaseCost          float64 `yaml:"base_cost"`          // energy per second regardless of genes
	PredatorThreshold float64 `yaml:"predator_threshold"` // is_predator gene above this = predator
	WanderTurn        float64 `yaml:"wander_turn"`        // max heading jitter per step (radians)
}

// CombatConfig holds fight trigger and energy transfer parameters.
type CombatConfig struct {
	Threshold         float64 `yaml:"threshold"`          // size*aggression*attack_power needed to start a fight
	PredationTransfer float64 `yaml:"predation_transfer"` // share of loser energy when a predator eats prey
	SkirmishTransfer  float64 `yaml:"skirmish_transfer"`  // share of loser energy otherwise
}

// ReproductionConfig holds mating parameters.
type ReproductionConfig struct {
	MaturityAge         float64 `yaml:"maturity_age"`
	Cooldown            float64 `yaml:"cooldown"`
	MateRange           float64 `yaml:"mate_range"`
	CostFraction        float64 `yaml:"cost_fraction"`        // share of own energy each parent pays
	OffspringEfficiency float64 `yaml:"offspring_efficiency"` // share of paid energy the child receives
	SpawnOffset         float64 `yaml:"spawn_offset"`
	DensityLimit        float64 `yaml:"density_limit"` // no breeding at or above this share of max_agents
}

// ResourceConfig holds resource growth and depletion parameters.
type ResourceConfig struct {
	TargetEnergyMin       float64 `yaml:"target_energy_min"`
	TargetEnergyMax       float64 `yaml:"target_energy_max"`
	MaxEnergyMin          float64 `yaml:"max_energy_min"`
	MaxEnergyMax          float64 `yaml:"max_energy_max"`
	GrowthRateMin         float64 `yaml:"growth_rate_min"`
	GrowthRateMax         float64 `yaml:"growth_rate_max"`
	RegenerationRateMin   float64 `yaml:"regeneration_rate_min"`
	RegenerationRateMax   float64 `yaml:"regeneration_rate_max"`
	SpawnFadeRate         float64 `yaml:"spawn_fade_rate"`
	DepleteFadeRate       float64 `yaml:"deplete_fade_rate"`
	AvailabilityThreshold float64 `yaml:"availability_threshold"`
	ConsumeAmount         float64 `yaml:"consume_amount"`
}

// TerminationConfig holds headless early-stop parameters.
type TerminationConfig struct {
	ExplosionFactor float64 `yaml:"explosion_factor"` // explosion when agents > factor*max_agents
	CollapseSteps   int     `yaml:"collapse_steps"`   // consecutive resource-free steps before collapse
}

// ScoringConfig holds diagnostics scoring parameters.
type ScoringConfig struct {
	StabilityWindow   int     `yaml:"stability_window"`   // trailing samples used for the stability CV
	MinHistory        int     `yaml:"min_history"`        // fewer samples score zero
	DynamismThreshold float64 `yaml:"dynamism_threshold"` // population range / mean needed to count as dynamic
}

// TelemetryConfig holds perf and event tracking parameters.
type TelemetryConfig struct {
	PerfWindow  int `yaml:"perf_window"`  // steps averaged by the perf collector
	EventWindow int `yaml:"event_window"` // steps between event detector samples
	LogInterval int `yaml:"log_interval"` // steps between progress logs (0 = off)
}

// ParallelConfig holds worker pool parameters.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`   // 0 = GOMAXPROCS
	Threshold int `yaml:"threshold"` // below this many items compute runs on the caller
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT             float64 // Physics.BaseDT * SpeedMultiplier
	TargetSeconds  float64 // TargetDurationMinutes in seconds
	ExplosionLimit int     // agent count above which a run has exploded
	Workers        int     // resolved worker count
}

// Default returns the embedded defaults. It panics if they fail to parse.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
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
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks construction-time invariants and refreshes derived values.
// Invalid configs are rejected, never clamped.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: world dimensions must be > 0, got %vx%v", ErrInvalid, c.Width, c.Height)
	case c.InitialAgents < 0 || c.InitialResources < 0:
		return fmt.Errorf("%w: initial counts must be >= 0", ErrInvalid)
	case c.MaxAgents < c.InitialAgents:
		return fmt.Errorf("%w: max_agents %d < initial_agents %d", ErrInvalid, c.MaxAgents, c.InitialAgents)
	case c.MaxResources < c.InitialResources:
		return fmt.Errorf("%w: max_resources %d < initial_resources %d", ErrInvalid, c.MaxResources, c.InitialResources)
	case c.TargetDurationMinutes <= 0:
		return fmt.Errorf("%w: target_duration_minutes must be > 0, got %v", ErrInvalid, c.TargetDurationMinutes)
	case c.SpeedMultiplier <= 0:
		return fmt.Errorf("%w: speed_multiplier must be > 0, got %v", ErrInvalid, c.SpeedMultiplier)
	case c.ResourceSpawnRate < 0:
		return fmt.Errorf("%w: resource_spawn_rate must be >= 0", ErrInvalid)
	case c.MinAgentCount > c.MaxAgentCount:
		return fmt.Errorf("%w: min_agent_count %d > max_agent_count %d", ErrInvalid, c.MinAgentCount, c.MaxAgentCount)
	case c.Physics.BaseDT <= 0:
		return fmt.Errorf("%w: physics.base_dt must be > 0", ErrInvalid)
	case c.Physics.GridCellSize <= 0:
		return fmt.Errorf("%w: physics.grid_cell_size must be > 0", ErrInvalid)
	case c.Agent.MaxEnergy <= 0:
		return fmt.Errorf("%w: agent.max_energy must be > 0", ErrInvalid)
	case c.Termination.ExplosionFactor <= 0:
		return fmt.Errorf("%w: termination.explosion_factor must be > 0", ErrInvalid)
	}
	c.computeDerived()
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT = c.Physics.BaseDT * c.SpeedMultiplier
	c.Derived.TargetSeconds = c.TargetDurationMinutes * 60
	c.Derived.ExplosionLimit = int(c.Termination.ExplosionFactor * float64(c.MaxAgents))
	c.Derived.Workers = c.Parallel.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
}

// Clone returns an independent copy. Config holds no reference types,
// so a value copy is deep.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
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
