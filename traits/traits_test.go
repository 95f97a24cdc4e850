package traits

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestRandomWithinRanges(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		g := Random(rng)
		if !g.Valid() {
			t.Fatalf("Random produced out-of-range genes: %v", g)
		}
		for tr, r := range initialRanges {
			if g[tr] < r.Min || g[tr] > r.Max {
				t.Fatalf("%s = %v outside initial range %v", Trait(tr), g[tr], r)
			}
		}
	}
}

// Repeated inheritance with extreme mutation rates must never escape the ranges.
func TestInheritanceKeepsBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	pop := make([]GeneSet, 32)
	for i := range pop {
		pop[i] = Random(rng)
		pop[i][MutationRate] = Ranges[MutationRate].Max
	}

	for gen := 0; gen < 500; gen++ {
		a := &pop[rng.IntN(len(pop))]
		b := &pop[rng.IntN(len(pop))]
		child := Inherit(a, b, rng)
		child = Mutate(child, 1.0, rng)
		if !child.Valid() {
			t.Fatalf("generation %d: child out of range: %v", gen, child)
		}
		pop[rng.IntN(len(pop))] = child
	}
}

func TestMutateClampsExtremeInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	var g GeneSet
	for i := range g {
		g[i] = 1e9
	}
	out := Mutate(g, 0, rng)
	if !out.Valid() {
		t.Fatalf("Mutate did not clamp: %v", out)
	}
	for i := range out {
		if out[i] != Ranges[i].Max {
			t.Errorf("%s = %v, want max %v", Trait(i), out[i], Ranges[i].Max)
		}
	}
}

func TestCrossoverBlendBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 9))
	var a, b GeneSet
	for i := range a {
		a[i] = Ranges[i].Min
		b[i] = Ranges[i].Max
	}
	for n := 0; n < 200; n++ {
		child := Crossover(&a, &b, rng)
		for i := range child {
			lo := Ranges[i].Min + (1-blendMax)*Ranges[i].Span()
			hi := Ranges[i].Min + (1-blendMin)*Ranges[i].Span()
			if child[i] < lo-1e-9 || child[i] > hi+1e-9 {
				t.Fatalf("%s = %v outside blend window [%v, %v]", Trait(i), child[i], lo, hi)
			}
		}
	}
}

func TestCrossoverIdenticalParents(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	a := Random(rng)
	child := Crossover(&a, &a, rng)
	for i := range child {
		if math.Abs(child[i]-a[i]) > 1e-9 {
			t.Errorf("%s = %v, want %v", Trait(i), child[i], a[i])
		}
	}
}

func TestTraitNames(t *testing.T) {
	tests := []struct {
		trait Trait
		want  string
	}{
		{Speed, "speed"},
		{ColorHue, "color_hue"},
		{IsPredator, "is_predator"},
		{Stamina, "stamina"},
		{NumTraits, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.trait.String(); got != tt.want {
			t.Errorf("Trait(%d).String() = %q, want %q", tt.trait, got, tt.want)
		}
	}
}

func TestPredatorAndFitness(t *testing.T) {
	var g GeneSet
	g[IsPredator] = 0.6
	g[Speed], g[Size], g[Aggression], g[AttackPower] = 2, 1.5, 0.5, 2
	if !g.IsPredatorAbove(0.5) {
		t.Error("expected predator")
	}
	if got := g.CombatProduct(); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("CombatProduct = %v, want 1.5", got)
	}
	if got := Fitness(&g, 10); math.Abs(got-15) > 1e-9 {
		t.Errorf("Fitness = %v, want 15", got)
	}
}
