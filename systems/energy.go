package systems

import (
	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/traits"
)

// Gene weights in the metabolic cost.
const (
	sizeCostWeight  = 0.05
	speedCostWeight = 0.02
	sprintCostMul   = 1.5 // hunting and fleeing
)

// MetabolicCost returns the energy an agent spends over dt in the given state.
func MetabolicCost(g *traits.GeneSet, state components.State, baseCost, dt float64) float64 {
	genes := (g[traits.Size]*sizeCostWeight + g[traits.Speed]*speedCostWeight) *
		g[traits.Metabolism] / g[traits.EnergyEfficiency]
	cost := (baseCost + genes) * dt
	if state == components.StateHunting || state == components.StateFleeing {
		cost *= sprintCostMul
	}
	return cost
}

// Feed moves energy from a resource into an agent and returns the energy gained.
// The resource starts fading even if it had less than the consume amount.
func Feed(a *components.Agent, res *components.ResourceState, r *Rules) float64 {
	taken := res.Consume(r.ConsumeAmount)
	before := a.Energy
	// Combat gains can leave an agent above max; feeding never lowers it
	a.Energy = max(a.Energy, min(a.Energy+taken*a.Genes[traits.EnergyEfficiency], a.MaxEnergy))
	return a.Energy - before
}

// Age advances an agent by dt, charges its cost and applies natural deaths.
func Age(a *components.Agent, cost, dt float64, r *Rules) {
	a.Age += dt
	a.Energy -= cost
	switch {
	case a.Energy <= 0:
		a.Kill(components.DeathStarvation)
	case a.Age > r.MaxAge:
		a.Kill(components.DeathOldAge)
	}
}
