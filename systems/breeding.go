package systems

import (
	"math/rand/v2"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/traits"
)

// CanBreed reports whether an agent is mature, rested and energetic enough to mate.
func CanBreed(a *components.Agent, r *Rules) bool {
	if !a.Alive() || a.Age < r.MaturityAge {
		return false
	}
	if a.LastReproduction >= 0 && a.Age-a.LastReproduction < r.Cooldown {
		return false
	}
	return a.Energy > a.Genes[traits.ReproductionThreshold]
}

// Breed charges both parents and returns their offspring with the given id.
// The child receives the efficiency share of what the parents paid.
func Breed(a, b *components.Agent, id uint64, rng *rand.Rand, r *Rules) components.Agent {
	costA := a.Energy * r.CostFraction
	costB := b.Energy * r.CostFraction
	a.Energy -= costA
	b.Energy -= costB
	a.LastReproduction = a.Age
	b.LastReproduction = b.Age

	genes := traits.Inherit(&a.Genes, &b.Genes, rng)
	ox := (rng.Float64()*2 - 1) * r.SpawnOffset
	oy := (rng.Float64()*2 - 1) * r.SpawnOffset

	child := NewAgent(id, genes, components.Position{
		X: Wrap(a.Pos.X+ox, r.Width),
		Y: Wrap(a.Pos.Y+oy, r.Height),
	}, r)
	child.Energy = min((costA+costB)*r.OffspringEfficiency, r.MaxEnergy)
	child.Generation = max(a.Generation, b.Generation) + 1
	child.ParentA = a.ID
	child.ParentB = b.ID
	return child
}

// NewAgent builds a founder-style agent with initial energy.
func NewAgent(id uint64, genes traits.GeneSet, pos components.Position, r *Rules) components.Agent {
	return components.Agent{
		Identity: components.Identity{
			ID:       id,
			Predator: genes.IsPredatorAbove(r.PredatorThreshold),
		},
		Vitals: components.Vitals{
			Energy:           r.InitialEnergy,
			MaxEnergy:        r.MaxEnergy,
			LastReproduction: -1,
			State:            components.StateSeeking,
		},
		Pos:   pos,
		Genes: genes,
	}
}
