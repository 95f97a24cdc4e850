package systems

import (
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/traits"
)

// View is the immutable world snapshot agents decide against.
// Agents and Resources are sorted by id; slot i of each Pos slice matches slot i of its records.
type View struct {
	Agents       []components.Agent
	AgentPos     []components.Position
	Resources    []components.Resource
	ResourcePos  []components.Position
	AgentGrid    *SpatialGrid
	ResourceGrid *SpatialGrid
	BreedingOpen bool // false when the population is above the density limit
}

// Intent is the pending update computed for one agent.
// It carries values only; the merge phase decides whether targets are still valid.
type Intent struct {
	State    components.State
	Pos      components.Position
	Vel      components.Velocity
	Cost     float64 // metabolic energy spent this tick
	Target   int     // agent slot for Fighting or Reproducing, -1 if none
	Resource int     // resource slot for Feeding, -1 if none
}

// Movement speed multipliers per state.
const (
	fleeSpeedMul = 3.0
	huntSpeedMul = 2.0
	seekSpeedMul = 2.0
)

// Decide runs the state machine for the agent in slot i.
// neighbors is per-worker scratch; the grown slice is returned for reuse.
func Decide(i int, v *View, r *Rules, dt float64, rng *rand.Rand, neighbors []Neighbor) (Intent, []Neighbor) {
	self := &v.Agents[i]
	g := &self.Genes
	pos := v.AgentPos[i]

	sense := g[traits.SenseRange]
	territory := g[traits.TerritorySize]
	radius := max(sense, r.ContactRadius, r.MateRange)
	if self.Predator {
		radius = max(radius, territory)
	}

	neighbors = v.AgentGrid.QueryRadiusInto(neighbors[:0], pos.X, pos.Y, radius, i, v.AgentPos)

	canBreed := v.BreedingOpen && CanBreed(self, r)
	contactSq := r.ContactRadius * r.ContactRadius

	predator, prey, opponent, mate := -1, -1, -1, -1
	var threatN Neighbor
	var preyN Neighbor
	predDistSq := math.Inf(1)
	opponentDistSq := math.Inf(1)
	mateDistSq := math.Inf(1)
	bestScore := math.Inf(-1)

	for _, n := range neighbors {
		other := &v.Agents[n.Index]
		dist := math.Sqrt(n.DistSq)

		if !self.Predator && other.Predator && dist <= sense {
			if n.DistSq < predDistSq || (n.DistSq == predDistSq && n.Index < predator) {
				predator, predDistSq, threatN = n.Index, n.DistSq, n
			}
		}

		if self.Predator && !other.Predator && dist <= territory {
			score := HuntScore(g, other, dist, territory)
			if score > bestScore || (score == bestScore && n.Index < prey) {
				prey, bestScore, preyN = n.Index, score, n
			}
		}

		if n.DistSq <= contactSq && WantsFight(self, other, r) {
			if n.DistSq < opponentDistSq || (n.DistSq == opponentDistSq && n.Index < opponent) {
				opponent, opponentDistSq = n.Index, n.DistSq
			}
		}

		if canBreed && dist <= r.MateRange && other.Predator == self.Predator && CanBreed(other, r) {
			if n.DistSq < mateDistSq || (n.DistSq == mateDistSq && n.Index < mate) {
				mate, mateDistSq = n.Index, n.DistSq
			}
		}
	}

	in := Intent{Target: -1, Resource: -1}
	speed := g[traits.Speed] * r.MoveScale

	switch {
	case predator >= 0:
		// Run along the reflected direction away from the nearest threat
		in.State = components.StateFleeing
		in.Vel = toward(-threatN.DX, -threatN.DY, speed*fleeSpeedMul)

	case opponent >= 0:
		in.State = components.StateFighting
		in.Target = opponent

	case prey >= 0:
		in.State = components.StateHunting
		in.Vel = toward(preyN.DX, preyN.DY, speed*g[traits.HuntingSpeed]*huntSpeedMul)

	case mate >= 0:
		in.State = components.StateReproducing
		in.Target = mate

	default:
		res, rn := nearestResource(v, r, pos, sense, neighbors)
		switch {
		case res >= 0 && rn.DistSq <= contactSq:
			in.State = components.StateFeeding
			in.Resource = res
		case res >= 0:
			in.State = components.StateSeeking
			in.Vel = toward(rn.DX, rn.DY, speed*seekSpeedMul)
		default:
			in.State = components.StateSeeking
			in.Vel = wander(self.Vel, speed, r.WanderTurn, rng)
		}
	}

	in.Pos = components.Position{
		X: Wrap(pos.X+in.Vel.X*dt, r.Width),
		Y: Wrap(pos.Y+in.Vel.Y*dt, r.Height),
	}
	in.Cost = MetabolicCost(g, in.State, r.BaseCost, dt)

	return in, neighbors
}

// HuntScore ranks prey for a predator. Close prey carrying energy scores high.
func HuntScore(g *traits.GeneSet, prey *components.Agent, dist, territory float64) float64 {
	proximity := 1 - dist/territory
	return prey.Energy / 100 * proximity * (1 + g[traits.Stealth]) * (1 + g[traits.Intelligence])
}

// WantsFight reports whether self starts a fight with an agent in contact.
// Predators always attack prey; other pairings need the combat product over threshold.
func WantsFight(self, other *components.Agent, r *Rules) bool {
	if self.Predator && !other.Predator {
		return true
	}
	if !self.Predator && other.Predator {
		return false
	}
	return self.Genes.CombatProduct() >= r.CombatThreshold
}

// nearestResource returns the slot and delta of the closest available resource within radius.
// It reuses the neighbor buffer after agent processing is done with it.
func nearestResource(v *View, r *Rules, pos components.Position, radius float64, buf []Neighbor) (int, Neighbor) {
	buf = v.ResourceGrid.QueryRadiusInto(buf[:0], pos.X, pos.Y, radius, -1, v.ResourcePos)
	best := -1
	var bestN Neighbor
	for _, n := range buf {
		if !v.Resources[n.Index].Available(r.AvailabilityThreshold) {
			continue
		}
		if best < 0 || n.DistSq < bestN.DistSq || (n.DistSq == bestN.DistSq && n.Index < best) {
			best, bestN = n.Index, n
		}
	}
	return best, bestN
}

// toward returns a velocity of the given speed along (dx, dy).
func toward(dx, dy, speed float64) components.Velocity {
	d := math.Hypot(dx, dy)
	if d == 0 {
		return components.Velocity{}
	}
	return components.Velocity{X: dx / d * speed, Y: dy / d * speed}
}

// wander keeps the current heading with a small random turn.
func wander(vel components.Velocity, speed, turn float64, rng *rand.Rand) components.Velocity {
	heading := rng.Float64() * 2 * math.Pi
	if vel.X != 0 || vel.Y != 0 {
		heading = normalizeAngle(vel.Heading() + (rng.Float64()*2-1)*turn)
	}
	return components.Velocity{X: math.Cos(heading) * speed, Y: math.Sin(heading) * speed}
}
