package engine

import (
	"math/rand/v2"
	"sort"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/systems"
	"github.com/pthm-cable/evosim/telemetry"
	"github.com/pthm-cable/evosim/traits"
)

// store is the storage half of a backend. The shared step pipeline reads every
// entity out through it, computes, merges, and writes results back.
// Refs are only valid between a load and the following flush.
type store interface {
	loadAgents(dst []components.Agent, refs []int) ([]components.Agent, []int)
	loadResources(dst []components.Resource, refs []int) ([]components.Resource, []int)
	saveAgent(ref int, a *components.Agent)
	saveResource(ref int, r *components.Resource)
	removeAgent(ref int)
	removeResource(ref int)
	insertAgent(a *components.Agent)
	insertResource(r *components.Resource)
	flush()
	counts() (agents, resources int)
	clear()
}

// mergeStream decorrelates the merge-phase RNG from per-agent streams.
const mergeStream = 0xda3e39cb94b95bdb

// core holds the backend-independent world state and step pipeline.
type core struct {
	cfg   *config.Config
	rules systems.Rules
	seed  uint64
	rng   *rand.Rand // merge phase only; consumed in ascending id order

	tick           uint64
	simTime        float64
	nextAgentID    uint64
	nextResourceID uint64
	spawnAccum     float64

	// Per-tick working set, sorted by id
	agents      []components.Agent
	agentRefs   []int
	agentPos    []components.Position
	resources   []components.Resource
	resRefs     []int
	resourcePos []components.Position
	intents     []systems.Intent
	grown       []components.ResourceState
	bred        []bool
	births      []components.Agent

	agentGrid    *systems.SpatialGrid
	resourceGrid *systems.SpatialGrid
	pool         *workerPool
	perf         *telemetry.PerfCollector

	totals counters
	stats  Stats
}

func newCore(cfg *config.Config) core {
	return core{
		cfg:          cfg,
		rules:        systems.NewRules(cfg),
		agentGrid:    systems.NewSpatialGrid(cfg.Width, cfg.Height, cfg.Physics.GridCellSize),
		resourceGrid: systems.NewSpatialGrid(cfg.Width, cfg.Height, cfg.Physics.GridCellSize),
		pool:         newWorkerPool(cfg.Derived.Workers, cfg.Parallel.Threshold),
		perf:         telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
	}
}

// reset clears the store and repopulates it from the config.
func (c *core) reset(s store) {
	s.clear()
	c.seed = c.cfg.Seed
	c.rng = rand.New(rand.NewPCG(c.seed, mergeStream))
	c.tick = 0
	c.simTime = 0
	c.nextAgentID = 1 // 0 means "no parent"
	c.nextResourceID = 1
	c.spawnAccum = 0
	c.totals = counters{}

	for i := 0; i < c.cfg.InitialAgents; i++ {
		c.addAgent(s, c.rng.Float64()*c.cfg.Width, c.rng.Float64()*c.cfg.Height)
	}
	for i := 0; i < c.cfg.InitialResources; i++ {
		c.addResource(s, c.rng.Float64()*c.cfg.Width, c.rng.Float64()*c.cfg.Height, true)
	}
	c.refreshStats(s)
}

// addAgent inserts a random founder unless the population is at capacity.
func (c *core) addAgent(s store, x, y float64) bool {
	if n, _ := s.counts(); n >= c.cfg.MaxAgents {
		return false
	}
	pos := components.Position{X: systems.Wrap(x, c.cfg.Width), Y: systems.Wrap(y, c.cfg.Height)}
	a := systems.NewAgent(c.nextAgentID, traits.Random(c.rng), pos, &c.rules)
	c.nextAgentID++
	s.insertAgent(&a)
	return true
}

// addResource inserts a resource unless resources are at capacity.
// Mature resources start grown and visible; spawned ones fade in from zero.
func (c *core) addResource(s store, x, y float64, mature bool) bool {
	if _, n := s.counts(); n >= c.cfg.MaxResources {
		return false
	}
	r := c.newResource(x, y, mature)
	s.insertResource(&r)
	return true
}

func (c *core) newResource(x, y float64, mature bool) components.Resource {
	pos := components.Position{X: systems.Wrap(x, c.cfg.Width), Y: systems.Wrap(y, c.cfg.Height)}
	r := systems.NewResource(c.nextResourceID, pos, c.rng, &c.rules)
	if mature {
		r.Energy = min(r.TargetEnergy, r.MaxEnergy)
		r.SpawnFade = 1
	}
	c.nextResourceID++
	return r
}

// step runs one full cycle: snapshot, spatial rebuild, parallel compute,
// sequential merge, commit.
func (c *core) step(s store, dt float64) Stats {
	c.perf.StartTick()
	c.tick++
	c.simTime += dt

	c.perf.StartPhase(telemetry.PhaseSnapshot)
	c.agents, c.agentRefs = s.loadAgents(c.agents[:0], c.agentRefs[:0])
	sort.Sort(agentOrder{c})
	c.resources, c.resRefs = s.loadResources(c.resources[:0], c.resRefs[:0])
	sort.Sort(resourceOrder{c})

	c.perf.StartPhase(telemetry.PhaseSpatial)
	c.agentPos = c.agentPos[:0]
	for i := range c.agents {
		c.agentPos = append(c.agentPos, c.agents[i].Pos)
	}
	c.resourcePos = c.resourcePos[:0]
	for i := range c.resources {
		c.resourcePos = append(c.resourcePos, c.resources[i].Pos)
	}
	c.agentGrid.Rebuild(c.agentPos)
	c.resourceGrid.Rebuild(c.resourcePos)

	c.perf.StartPhase(telemetry.PhaseCompute)
	c.computeIntents(dt)
	c.computeResources(dt)

	c.perf.StartPhase(telemetry.PhaseResources)
	for i := range c.resources {
		c.resources[i].ResourceState = c.grown[i]
	}

	c.perf.StartPhase(telemetry.PhaseMerge)
	c.merge(dt)

	c.perf.StartPhase(telemetry.PhaseCommit)
	c.commit(s, dt)

	c.perf.StartPhase(telemetry.PhaseStats)
	c.publishStats()
	c.perf.EndTick()
	return c.stats
}

// computeIntents fans the per-agent state machine out over the pool.
// Workers read the snapshot and grids and write only their own intent slot.
func (c *core) computeIntents(dt float64) {
	n := len(c.agents)
	if cap(c.intents) < n {
		c.intents = make([]systems.Intent, n)
	}
	c.intents = c.intents[:n]

	view := &systems.View{
		Agents:       c.agents,
		AgentPos:     c.agentPos,
		Resources:    c.resources,
		ResourcePos:  c.resourcePos,
		AgentGrid:    c.agentGrid,
		ResourceGrid: c.resourceGrid,
		BreedingOpen: float64(n) < c.cfg.Reproduction.DensityLimit*float64(c.cfg.MaxAgents),
	}
	rules := &c.rules
	seed, tick := c.seed, c.tick

	c.pool.run(n, func(start, end int, scratch *workerScratch) {
		for i := start; i < end; i++ {
			rng := scratch.reseed(seed, tick, view.Agents[i].ID)
			c.intents[i], scratch.neighbors = systems.Decide(i, view, rules, dt, rng, scratch.neighbors)
		}
	})
}

// computeResources computes next resource states in parallel.
func (c *core) computeResources(dt float64) {
	n := len(c.resources)
	if cap(c.grown) < n {
		c.grown = make([]components.ResourceState, n)
	}
	c.grown = c.grown[:n]
	rules := &c.rules

	c.pool.run(n, func(start, end int, _ *workerScratch) {
		for i := start; i < end; i++ {
			c.grown[i] = systems.GrowResource(c.resources[i].ResourceState, dt, rules)
		}
	})
}

// merge applies intents in ascending id order. It is the only writer of
// agent and resource state during a step, so every target is re-validated.
func (c *core) merge(dt float64) {
	r := &c.rules
	n := len(c.agents)
	if cap(c.bred) < n {
		c.bred = make([]bool, n)
	}
	c.bred = c.bred[:n]
	clear(c.bred)
	c.births = c.births[:0]
	c.totals.stepKills = 0

	for i := range c.agents {
		a := &c.agents[i]
		if !a.Alive() {
			continue // killed earlier in this merge
		}
		in := &c.intents[i]
		a.State = in.State
		a.Pos = in.Pos
		a.Vel = in.Vel
		systems.Age(a, in.Cost, dt, r)
		if !a.Alive() {
			continue
		}

		switch in.State {
		case components.StateFighting:
			b := &c.agents[in.Target]
			if !b.Alive() {
				a.State = components.StateSeeking
				continue
			}
			b.State = components.StateFighting
			systems.Fight(a, b, r)
			c.totals.kills++
			c.totals.stepKills++

		case components.StateFeeding:
			res := &c.resources[in.Resource]
			if !res.Available(r.AvailabilityThreshold) {
				a.State = components.StateSeeking
				continue
			}
			systems.Feed(a, &res.ResourceState, r)

		case components.StateReproducing:
			if c.bred[i] {
				continue // already a partner this tick
			}
			j := in.Target
			b := &c.agents[j]
			if c.bred[j] || !b.Alive() ||
				!systems.CanBreed(a, r) || !systems.CanBreed(b, r) ||
				n+len(c.births) >= c.cfg.MaxAgents {
				a.State = components.StateSeeking
				continue
			}
			child := systems.Breed(a, b, c.nextAgentID, c.rng, r)
			c.nextAgentID++
			c.births = append(c.births, child)
			c.bred[i], c.bred[j] = true, true
			b.State = components.StateReproducing
		}
	}
}

// commit writes the merged working set back to the store, removes the dead
// and faded, inserts newborns and spawns resources. Afterwards the working
// set holds exactly the stored entities, refs no longer line up with it.
func (c *core) commit(s store, dt float64) {
	c.totals.stepBirths = len(c.births)
	c.totals.stepDeaths = 0

	live := c.agents[:0]
	for i := range c.agents {
		a := &c.agents[i]
		if !a.Alive() {
			c.totals.recordDeath(a.Death)
			s.removeAgent(c.agentRefs[i])
			continue
		}
		s.saveAgent(c.agentRefs[i], a)
		live = append(live, *a)
	}
	for i := range c.births {
		s.insertAgent(&c.births[i])
	}
	c.agents = append(live, c.births...)
	c.totals.births += uint64(len(c.births))

	kept := c.resources[:0]
	for i := range c.resources {
		res := &c.resources[i]
		if res.Gone() {
			s.removeResource(c.resRefs[i])
			continue
		}
		s.saveResource(c.resRefs[i], res)
		kept = append(kept, *res)
	}
	c.resources = kept
	s.flush()

	c.spawnAccum += c.cfg.ResourceSpawnRate * dt
	for c.spawnAccum >= 1 {
		c.spawnAccum--
		x, y := c.rng.Float64()*c.cfg.Width, c.rng.Float64()*c.cfg.Height
		if len(c.resources) >= c.cfg.MaxResources {
			continue
		}
		r := c.newResource(x, y, false)
		s.insertResource(&r)
		c.resources = append(c.resources, r)
	}
}

// agentsSorted loads every agent into dst sorted by id, outside a step.
func (c *core) agentsSorted(s store, dst []components.Agent) []components.Agent {
	base := len(dst)
	dst, _ = s.loadAgents(dst, nil)
	tail := dst[base:]
	sort.Slice(tail, func(i, j int) bool { return tail[i].ID < tail[j].ID })
	return dst
}

// resourcesSorted loads every resource into dst sorted by id, outside a step.
func (c *core) resourcesSorted(s store, dst []components.Resource) []components.Resource {
	base := len(dst)
	dst, _ = s.loadResources(dst, nil)
	tail := dst[base:]
	sort.Slice(tail, func(i, j int) bool { return tail[i].ID < tail[j].ID })
	return dst
}

// agentOrder sorts the agent working set and its refs together.
type agentOrder struct{ c *core }

func (o agentOrder) Len() int           { return len(o.c.agents) }
func (o agentOrder) Less(i, j int) bool { return o.c.agents[i].ID < o.c.agents[j].ID }
func (o agentOrder) Swap(i, j int) {
	o.c.agents[i], o.c.agents[j] = o.c.agents[j], o.c.agents[i]
	o.c.agentRefs[i], o.c.agentRefs[j] = o.c.agentRefs[j], o.c.agentRefs[i]
}

// resourceOrder sorts the resource working set and its refs together.
type resourceOrder struct{ c *core }

func (o resourceOrder) Len() int           { return len(o.c.resources) }
func (o resourceOrder) Less(i, j int) bool { return o.c.resources[i].ID < o.c.resources[j].ID }
func (o resourceOrder) Swap(i, j int) {
	o.c.resources[i], o.c.resources[j] = o.c.resources[j], o.c.resources[i]
	o.c.resRefs[i], o.c.resRefs[j] = o.c.resRefs[j], o.c.resRefs[i]
}
