// Package components defines entity state shared by both engine backends.
// The data-oriented backend stores each type as an ECS component column;
// the legacy backend embeds them in one heap-allocated Agent per entity.
package components

import "github.com/pthm-cable/evosim/traits"

// State is the agent behavior state chosen once per tick.
type State uint8

const (
	StateSeeking State = iota
	StateHunting
	StateFeeding
	StateFighting
	StateFleeing
	StateReproducing
)

// DeathReason records why an agent was removed.
type DeathReason uint8

const (
	DeathNone DeathReason = iota
	DeathStarvation
	DeathKilled
	DeathOldAge
)

// Identity holds stable lineage data. Parents are referenced by id; 0 means none.
type Identity struct {
	ID         uint64
	Generation uint32
	ParentA    uint64
	ParentB    uint64
	Predator   bool // fixed at birth from the is_predator gene
}

// Vitals holds mutable per-agent life state.
type Vitals struct {
	Energy           float64
	MaxEnergy        float64
	Age              float64
	LastReproduction float64 // age at last birth; negative = never
	State            State
	Kills            uint32
	Death            DeathReason
}

// Alive reports whether the agent has not been scheduled for removal.
func (v *Vitals) Alive() bool { return v.Death == DeathNone }

// Kill zeroes energy and records the reason.
func (v *Vitals) Kill(reason DeathReason) {
	v.Energy = 0
	v.Death = reason
}

// Genome wraps the gene set as a component.
type Genome struct {
	Genes traits.GeneSet
}

// Agent is the complete record of one agent.
type Agent struct {
	Identity
	Vitals
	Pos   Position
	Vel   Velocity
	Genes traits.GeneSet
}

// ResourceState holds a resource's energy and fade state.
type ResourceState struct {
	ID               uint64
	Energy           float64
	MaxEnergy        float64
	TargetEnergy     float64
	GrowthRate       float64
	RegenerationRate float64
	SpawnFade        float64 // 0 -> 1 after spawning
	DepleteFade      float64 // 1 -> 0 once depleting
	Depleting        bool
}

// Available reports whether agents may feed on the resource.
func (r *ResourceState) Available(threshold float64) bool {
	return r.Energy > threshold && !r.Depleting && r.SpawnFade > 0.5
}

// Consume removes up to amount energy and starts the depletion fade.
// Returns the energy actually taken.
func (r *ResourceState) Consume(amount float64) float64 {
	taken := min(amount, r.Energy)
	r.Energy -= taken
	r.Depleting = true
	return taken
}

// Gone reports whether the depletion fade has finished.
func (r *ResourceState) Gone() bool {
	return r.Depleting && r.DepleteFade <= 0
}

// Resource is the complete record of one resource.
type Resource struct {
	ResourceState
	Pos Position
}
