package harness

import (
	"github.com/pthm-cable/evosim/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Integer bool    // rounded when applied
	get     func(*config.Config) float64
	set     func(*config.Config, float64)
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Founders
			{
				Name: "initial_agents", Path: "initial_agents", Min: 50, Max: 1000, Integer: true,
				get: func(c *config.Config) float64 { return float64(c.InitialAgents) },
				set: func(c *config.Config, v float64) { c.InitialAgents = int(v) },
			},
			{
				Name: "initial_resources", Path: "initial_resources", Min: 100, Max: 1500, Integer: true,
				get: func(c *config.Config) float64 { return float64(c.InitialResources) },
				set: func(c *config.Config, v float64) { c.InitialResources = int(v) },
			},
			// Resources
			{
				Name: "resource_spawn_rate", Path: "resource_spawn_rate", Min: 1, Max: 40,
				get: func(c *config.Config) float64 { return c.ResourceSpawnRate },
				set: func(c *config.Config, v float64) { c.ResourceSpawnRate = v },
			},
			{
				Name: "consume_amount", Path: "resource.consume_amount", Min: 10, Max: 100,
				get: func(c *config.Config) float64 { return c.Resource.ConsumeAmount },
				set: func(c *config.Config, v float64) { c.Resource.ConsumeAmount = v },
			},
			// Scoring
			{
				Name: "stability_threshold", Path: "stability_threshold", Min: 0.02, Max: 0.3,
				get: func(c *config.Config) float64 { return c.StabilityThreshold },
				set: func(c *config.Config, v float64) { c.StabilityThreshold = v },
			},
			// Energy
			{
				Name: "base_cost", Path: "agent.base_cost", Min: 0.1, Max: 2,
				get: func(c *config.Config) float64 { return c.Agent.BaseCost },
				set: func(c *config.Config, v float64) { c.Agent.BaseCost = v },
			},
			// Reproduction
			{
				Name: "cost_fraction", Path: "reproduction.cost_fraction", Min: 0.1, Max: 0.6,
				get: func(c *config.Config) float64 { return c.Reproduction.CostFraction },
				set: func(c *config.Config, v float64) { c.Reproduction.CostFraction = v },
			},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Names returns the parameter names in vector order.
func (pv *ParamVector) Names() []string {
	names := make([]string, len(pv.Specs))
	for i, spec := range pv.Specs {
		names[i] = spec.Name
	}
	return names
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg. Population caps
// are raised to fit the founder counts.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		spec := pv.Specs[i]
		if spec.Integer {
			v = float64(int(v + 0.5))
		}
		spec.set(cfg, v)
	}
	cfg.MaxAgents = max(cfg.MaxAgents, cfg.InitialAgents)
	cfg.MaxResources = max(cfg.MaxResources, cfg.InitialResources)
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.get(cfg)
	}
	return v
}
