// Package engine implements the simulation world behind one contract with two
// storage backends: a legacy array of heap-allocated agent structs and a
// data-oriented ECS backend with one column per component.
package engine

import (
	"fmt"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/telemetry"
)

// Kind identifies a backend.
type Kind uint8

const (
	KindLegacy Kind = iota
	KindDataOriented
)

func (k Kind) String() string {
	if k == KindDataOriented {
		return "data_oriented"
	}
	return "legacy"
}

// Engine is the contract both backends implement. Only *LegacyEngine and
// *DataOrientedEngine satisfy it; callers go through Simulation.
// Engines are not safe for concurrent use.
type Engine interface {
	// Step advances the world by dt and returns the resulting stats.
	Step(dt float64) Stats
	// AddAgent inserts a random founder; false means the population is at capacity.
	AddAgent(x, y float64) bool
	// AddResource inserts a fresh resource; false means resources are at capacity.
	AddResource(x, y float64) bool
	// Stats returns the snapshot from the last step or insertion.
	Stats() Stats
	// Reset re-seeds and repopulates the world from the config.
	Reset()
	// Agents appends a copy of every live agent, sorted by id.
	Agents(dst []components.Agent) []components.Agent
	// Resources appends a copy of every resource, sorted by id.
	Resources(dst []components.Resource) []components.Resource
	// Perf returns rolling step timings.
	Perf() telemetry.PerfStats
	Kind() Kind
	// Close stops the worker pool.
	Close()
}

var (
	_ Engine = (*LegacyEngine)(nil)
	_ Engine = (*DataOrientedEngine)(nil)
)

// Options tunes engine construction beyond the config.
type Options struct {
	Workers int   // overrides config when > 0
	Seed    int64 // overrides config seed when non-zero
}

// Simulation is the selector wrapper callers hold. It picks a backend once at
// construction and forwards every operation.
type Simulation struct {
	engine Engine
}

// New validates cfg and builds the backend it selects, populated with the
// initial agents and resources.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	cfg = cfg.Clone()
	if opts.Workers > 0 {
		cfg.Parallel.Workers = opts.Workers
	}
	if opts.Seed != 0 {
		cfg.Seed = uint64(opts.Seed)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	var e Engine
	if cfg.UseDataOrientedEngine {
		e = newDataOrientedEngine(cfg)
	} else {
		e = newLegacyEngine(cfg)
	}
	return &Simulation{engine: e}, nil
}

// Step advances the world by dt. A non-positive dt leaves the world unchanged.
func (s *Simulation) Step(dt float64) Stats {
	if dt <= 0 {
		return s.engine.Stats()
	}
	return s.engine.Step(dt)
}

// AddAgent inserts a founder at (x, y), reporting false at capacity.
func (s *Simulation) AddAgent(x, y float64) bool { return s.engine.AddAgent(x, y) }

// AddResource inserts a resource at (x, y), reporting false at capacity.
func (s *Simulation) AddResource(x, y float64) bool { return s.engine.AddResource(x, y) }

// Stats returns the latest stats snapshot without mutating the world.
func (s *Simulation) Stats() Stats { return s.engine.Stats() }

// Reset restores the initial population.
func (s *Simulation) Reset() { s.engine.Reset() }

// Agents appends a copy of every live agent to dst.
func (s *Simulation) Agents(dst []components.Agent) []components.Agent {
	return s.engine.Agents(dst)
}

// Resources appends a copy of every resource to dst.
func (s *Simulation) Resources(dst []components.Resource) []components.Resource {
	return s.engine.Resources(dst)
}

// Perf returns rolling step timings.
func (s *Simulation) Perf() telemetry.PerfStats { return s.engine.Perf() }

// Kind reports the selected backend.
func (s *Simulation) Kind() Kind { return s.engine.Kind() }

// Close releases the worker pool.
func (s *Simulation) Close() { s.engine.Close() }
