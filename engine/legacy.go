package engine

import (
	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/telemetry"
)

// LegacyEngine stores every entity as a heap-allocated struct in a slice.
// Removal leaves a nil hole that flush compacts away in order.
type LegacyEngine struct {
	core

	heapAgents    []*components.Agent
	heapResources []*components.Resource
	holes         bool
}

func newLegacyEngine(cfg *config.Config) *LegacyEngine {
	e := &LegacyEngine{core: newCore(cfg)}
	e.reset(e)
	return e
}

func (e *LegacyEngine) Step(dt float64) Stats { return e.step(e, dt) }

func (e *LegacyEngine) AddAgent(x, y float64) bool {
	if !e.addAgent(e, x, y) {
		return false
	}
	e.refreshStats(e)
	return true
}

func (e *LegacyEngine) AddResource(x, y float64) bool {
	if !e.addResource(e, x, y, false) {
		return false
	}
	e.refreshStats(e)
	return true
}

func (e *LegacyEngine) Stats() Stats { return e.stats }

func (e *LegacyEngine) Reset() { e.reset(e) }

func (e *LegacyEngine) Agents(dst []components.Agent) []components.Agent {
	return e.agentsSorted(e, dst)
}

func (e *LegacyEngine) Resources(dst []components.Resource) []components.Resource {
	return e.resourcesSorted(e, dst)
}

func (e *LegacyEngine) Perf() telemetry.PerfStats { return e.perf.Stats() }

func (e *LegacyEngine) Kind() Kind { return KindLegacy }

func (e *LegacyEngine) Close() { e.pool.stop() }

// store implementation

func (e *LegacyEngine) loadAgents(dst []components.Agent, refs []int) ([]components.Agent, []int) {
	for i, a := range e.heapAgents {
		dst = append(dst, *a)
		refs = append(refs, i)
	}
	return dst, refs
}

func (e *LegacyEngine) loadResources(dst []components.Resource, refs []int) ([]components.Resource, []int) {
	for i, r := range e.heapResources {
		dst = append(dst, *r)
		refs = append(refs, i)
	}
	return dst, refs
}

func (e *LegacyEngine) saveAgent(ref int, a *components.Agent) { *e.heapAgents[ref] = *a }

func (e *LegacyEngine) saveResource(ref int, r *components.Resource) { *e.heapResources[ref] = *r }

func (e *LegacyEngine) removeAgent(ref int) {
	e.heapAgents[ref] = nil
	e.holes = true
}

func (e *LegacyEngine) removeResource(ref int) {
	e.heapResources[ref] = nil
	e.holes = true
}

func (e *LegacyEngine) insertAgent(a *components.Agent) {
	agent := *a
	e.heapAgents = append(e.heapAgents, &agent)
}

func (e *LegacyEngine) insertResource(r *components.Resource) {
	res := *r
	e.heapResources = append(e.heapResources, &res)
}

// flush compacts out removed entries, preserving order.
func (e *LegacyEngine) flush() {
	if !e.holes {
		return
	}
	e.heapAgents = compact(e.heapAgents)
	e.heapResources = compact(e.heapResources)
	e.holes = false
}

func compact[T any](items []*T) []*T {
	n := 0
	for _, item := range items {
		if item != nil {
			items[n] = item
			n++
		}
	}
	clear(items[n:])
	return items[:n]
}

func (e *LegacyEngine) counts() (int, int) { return len(e.heapAgents), len(e.heapResources) }

func (e *LegacyEngine) clear() {
	e.heapAgents = nil
	e.heapResources = nil
	e.holes = false
}
