package engine

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/telemetry"
)

// DataOrientedEngine stores agents and resources as ECS entities with one
// column per component, so the hot loops touch contiguous memory.
type DataOrientedEngine struct {
	core

	world *ecs.World

	agentMapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Vitals,
		components.Identity,
		components.Genome,
	]
	agentFilter *ecs.Filter5[
		components.Position,
		components.Velocity,
		components.Vitals,
		components.Identity,
		components.Genome,
	]
	resourceMapper *ecs.Map2[components.Position, components.ResourceState]
	resourceFilter *ecs.Filter2[components.Position, components.ResourceState]

	// Entity handles from the last load, indexed by ref
	agentHandles    []ecs.Entity
	resourceHandles []ecs.Entity

	// Removals are deferred to flush
	doomedAgents    []ecs.Entity
	doomedResources []ecs.Entity

	numAgents    int
	numResources int
}

func newDataOrientedEngine(cfg *config.Config) *DataOrientedEngine {
	e := &DataOrientedEngine{core: newCore(cfg)}
	e.reset(e) // clear builds the world
	return e
}

// newWorld replaces the ECS world and rebuilds mappers and filters for it.
func (e *DataOrientedEngine) newWorld() {
	world := ecs.NewWorld()
	e.world = world
	e.agentMapper = ecs.NewMap5[
		components.Position,
		components.Velocity,
		components.Vitals,
		components.Identity,
		components.Genome,
	](world)
	e.agentFilter = ecs.NewFilter5[
		components.Position,
		components.Velocity,
		components.Vitals,
		components.Identity,
		components.Genome,
	](world)
	e.resourceMapper = ecs.NewMap2[components.Position, components.ResourceState](world)
	e.resourceFilter = ecs.NewFilter2[components.Position, components.ResourceState](world)
}

func (e *DataOrientedEngine) Step(dt float64) Stats { return e.step(e, dt) }

func (e *DataOrientedEngine) AddAgent(x, y float64) bool {
	if !e.addAgent(e, x, y) {
		return false
	}
	e.refreshStats(e)
	return true
}

func (e *DataOrientedEngine) AddResource(x, y float64) bool {
	if !e.addResource(e, x, y, false) {
		return false
	}
	e.refreshStats(e)
	return true
}

func (e *DataOrientedEngine) Stats() Stats { return e.stats }

func (e *DataOrientedEngine) Reset() { e.reset(e) }

func (e *DataOrientedEngine) Agents(dst []components.Agent) []components.Agent {
	return e.agentsSorted(e, dst)
}

func (e *DataOrientedEngine) Resources(dst []components.Resource) []components.Resource {
	return e.resourcesSorted(e, dst)
}

func (e *DataOrientedEngine) Perf() telemetry.PerfStats { return e.perf.Stats() }

func (e *DataOrientedEngine) Kind() Kind { return KindDataOriented }

func (e *DataOrientedEngine) Close() { e.pool.stop() }

// store implementation

func (e *DataOrientedEngine) loadAgents(dst []components.Agent, refs []int) ([]components.Agent, []int) {
	e.agentHandles = e.agentHandles[:0]
	query := e.agentFilter.Query()
	for query.Next() {
		pos, vel, vitals, id, genome := query.Get()
		refs = append(refs, len(e.agentHandles))
		e.agentHandles = append(e.agentHandles, query.Entity())
		dst = append(dst, components.Agent{
			Identity: *id,
			Vitals:   *vitals,
			Pos:      *pos,
			Vel:      *vel,
			Genes:    genome.Genes,
		})
	}
	return dst, refs
}

func (e *DataOrientedEngine) loadResources(dst []components.Resource, refs []int) ([]components.Resource, []int) {
	e.resourceHandles = e.resourceHandles[:0]
	query := e.resourceFilter.Query()
	for query.Next() {
		pos, state := query.Get()
		refs = append(refs, len(e.resourceHandles))
		e.resourceHandles = append(e.resourceHandles, query.Entity())
		dst = append(dst, components.Resource{ResourceState: *state, Pos: *pos})
	}
	return dst, refs
}

// saveAgent writes back only the mutable columns; identity and genes are fixed at birth.
func (e *DataOrientedEngine) saveAgent(ref int, a *components.Agent) {
	pos, vel, vitals, _, _ := e.agentMapper.Get(e.agentHandles[ref])
	*pos = a.Pos
	*vel = a.Vel
	*vitals = a.Vitals
}

func (e *DataOrientedEngine) saveResource(ref int, r *components.Resource) {
	_, state := e.resourceMapper.Get(e.resourceHandles[ref])
	*state = r.ResourceState
}

func (e *DataOrientedEngine) removeAgent(ref int) {
	e.doomedAgents = append(e.doomedAgents, e.agentHandles[ref])
}

func (e *DataOrientedEngine) removeResource(ref int) {
	e.doomedResources = append(e.doomedResources, e.resourceHandles[ref])
}

func (e *DataOrientedEngine) insertAgent(a *components.Agent) {
	pos, vel, vitals, id := a.Pos, a.Vel, a.Vitals, a.Identity
	genome := components.Genome{Genes: a.Genes}
	e.agentMapper.NewEntity(&pos, &vel, &vitals, &id, &genome)
	e.numAgents++
}

func (e *DataOrientedEngine) insertResource(r *components.Resource) {
	pos, state := r.Pos, r.ResourceState
	e.resourceMapper.NewEntity(&pos, &state)
	e.numResources++
}

// flush applies deferred removals. No query is open at this point.
func (e *DataOrientedEngine) flush() {
	for _, entity := range e.doomedAgents {
		e.world.RemoveEntity(entity)
		e.numAgents--
	}
	for _, entity := range e.doomedResources {
		e.world.RemoveEntity(entity)
		e.numResources--
	}
	e.doomedAgents = e.doomedAgents[:0]
	e.doomedResources = e.doomedResources[:0]
}

func (e *DataOrientedEngine) counts() (int, int) { return e.numAgents, e.numResources }

func (e *DataOrientedEngine) clear() {
	e.newWorld()
	e.agentHandles = e.agentHandles[:0]
	e.resourceHandles = e.resourceHandles[:0]
	e.doomedAgents = e.doomedAgents[:0]
	e.doomedResources = e.doomedResources[:0]
	e.numAgents, e.numResources = 0, 0
}
