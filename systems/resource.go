package systems

import (
	"math/rand/v2"

	"github.com/pthm-cable/evosim/components"
)

// NewResource draws a freshly spawned resource. Energy starts at zero and fades in.
func NewResource(id uint64, pos components.Position, rng *rand.Rand, r *Rules) components.Resource {
	c := &r.Resource
	return components.Resource{
		ResourceState: components.ResourceState{
			ID:               id,
			TargetEnergy:     uniform(rng, c.TargetEnergyMin, c.TargetEnergyMax),
			MaxEnergy:        uniform(rng, c.MaxEnergyMin, c.MaxEnergyMax),
			GrowthRate:       uniform(rng, c.GrowthRateMin, c.GrowthRateMax),
			RegenerationRate: uniform(rng, c.RegenerationRateMin, c.RegenerationRateMax),
			DepleteFade:      1,
		},
		Pos: pos,
	}
}

// GrowResource returns the resource state after dt.
// Energy grows toward its target at the growth rate, then creeps to max at the
// regeneration rate. Depleting resources only fade out.
func GrowResource(s components.ResourceState, dt float64, r *Rules) components.ResourceState {
	if s.Depleting {
		s.DepleteFade = max(0, s.DepleteFade-r.DepleteFadeRate*dt)
		return s
	}
	s.SpawnFade = min(1, s.SpawnFade+r.SpawnFadeRate*dt)
	rate := s.RegenerationRate
	if s.Energy < s.TargetEnergy {
		rate = s.GrowthRate
	}
	s.Energy = min(s.MaxEnergy, s.Energy+rate*dt)
	return s
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
