// Package traits defines the heritable gene vector and its inheritance rules.
package traits

import (
	"math/rand/v2"
)

// Trait indexes one named gene.
type Trait uint8

const (
	// Baseline traits
	Speed Trait = iota
	SenseRange
	Size
	EnergyEfficiency
	ReproductionThreshold
	MutationRate
	Aggression
	ColorHue

	// Predator traits
	IsPredator
	HuntingSpeed
	AttackPower
	Defense
	Stealth
	PackMentality
	TerritorySize
	Metabolism
	Intelligence
	Stamina

	NumTraits
)

var traitNames = [NumTraits]string{
	"speed", "sense_range", "size", "energy_efficiency", "reproduction_threshold",
	"mutation_rate", "aggression", "color_hue",
	"is_predator", "hunting_speed", "attack_power", "defense", "stealth",
	"pack_mentality", "territory_size", "metabolism", "intelligence", "stamina",
}

// String returns the snake_case gene name.
func (t Trait) String() string {
	if t >= NumTraits {
		return "unknown"
	}
	return traitNames[t]
}

// Range is a closed interval.
type Range struct {
	Min, Max float64
}

// Span returns Max - Min.
func (r Range) Span() float64 { return r.Max - r.Min }

// Clamp limits v to the interval.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Contains reports whether v lies in the interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Ranges holds the valid interval of every trait.
var Ranges = [NumTraits]Range{
	Speed:                 {0.1, 3.0},
	SenseRange:            {5, 150},
	Size:                  {0.3, 2.5},
	EnergyEfficiency:      {0.1, 2.5},
	ReproductionThreshold: {10, 200},
	MutationRate:          {0.001, 0.3},
	Aggression:            {0, 1},
	ColorHue:              {0, 360},
	IsPredator:            {0, 1},
	HuntingSpeed:          {0.5, 3},
	AttackPower:           {0.1, 3},
	Defense:               {0.1, 3},
	Stealth:               {0, 1},
	PackMentality:         {0, 1},
	TerritorySize:         {10, 300},
	Metabolism:            {0.1, 3},
	Intelligence:          {0.1, 3},
	Stamina:               {0.1, 3},
}

// initialRanges are the narrower intervals founders are drawn from.
var initialRanges = [NumTraits]Range{
	Speed:                 {0.8, 1.5},
	SenseRange:            {30, 80},
	Size:                  {0.9, 1.3},
	EnergyEfficiency:      {0.8, 1.2},
	ReproductionThreshold: {60, 120},
	MutationRate:          {0.02, 0.08},
	Aggression:            {0.2, 0.8},
	ColorHue:              {0, 360},
	IsPredator:            {0, 0.3},
	HuntingSpeed:          {1, 2},
	AttackPower:           {0.5, 1.5},
	Defense:               {0.5, 1.5},
	Stealth:               {0, 1},
	PackMentality:         {0, 1},
	TerritorySize:         {50, 150},
	Metabolism:            {0.8, 1.4},
	Intelligence:          {0.5, 1.5},
	Stamina:               {0.5, 1.5},
}

// Crossover blend factor bounds and mutation step (as a share of trait span).
const (
	blendMin      = 0.3
	blendMax      = 0.7
	mutationSigma = 0.05
)

// GeneSet is an agent's heritable parameter vector.
// Every value lies within Ranges once returned from this package.
type GeneSet [NumTraits]float64

// Get returns one trait value.
func (g *GeneSet) Get(t Trait) float64 { return g[t] }

// Random draws a founder gene set.
func Random(rng *rand.Rand) GeneSet {
	var g GeneSet
	for i, r := range initialRanges {
		g[i] = r.Min + rng.Float64()*r.Span()
	}
	g.Clamp()
	return g
}

// Clamp forces every trait into its valid range.
func (g *GeneSet) Clamp() {
	for i := range g {
		g[i] = Ranges[i].Clamp(g[i])
	}
}

// Valid reports whether every trait lies within its range.
func (g *GeneSet) Valid() bool {
	for i := range g {
		if !Ranges[i].Contains(g[i]) {
			return false
		}
	}
	return true
}

// Crossover blends two parents trait by trait with a random weight per trait.
func Crossover(a, b *GeneSet, rng *rand.Rand) GeneSet {
	var child GeneSet
	for i := range child {
		w := blendMin + rng.Float64()*(blendMax-blendMin)
		child[i] = a[i]*w + b[i]*(1-w)
	}
	child.Clamp()
	return child
}

// Mutate perturbs each trait independently with probability rate.
// Noise is normal with a standard deviation proportional to the trait span.
func Mutate(g GeneSet, rate float64, rng *rand.Rand) GeneSet {
	for i := range g {
		if rng.Float64() < rate {
			g[i] += rng.NormFloat64() * mutationSigma * Ranges[i].Span()
		}
	}
	g.Clamp()
	return g
}

// Inherit is crossover followed by mutation at the first parent's mutation rate.
func Inherit(a, b *GeneSet, rng *rand.Rand) GeneSet {
	child := Crossover(a, b, rng)
	return Mutate(child, a[MutationRate], rng)
}

// IsPredatorAbove reports whether the is_predator gene exceeds threshold.
func (g *GeneSet) IsPredatorAbove(threshold float64) bool {
	return g[IsPredator] > threshold
}

// CombatProduct is size*aggression*attack_power, compared with the fight threshold.
func (g *GeneSet) CombatProduct() float64 {
	return g[Size] * g[Aggression] * g[AttackPower]
}

// Fitness is the population fitness proxy reported in stats.
func Fitness(g *GeneSet, energy float64) float64 {
	return energy * g[Speed] * g[Size] * g[Aggression]
}
