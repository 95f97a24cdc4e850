package systems

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/traits"
)

func testRules() Rules {
	return NewRules(config.Default())
}

// midGenes returns every gene at the middle of its range.
func midGenes() traits.GeneSet {
	var g traits.GeneSet
	for i := range g {
		r := traits.Ranges[i]
		g[i] = (r.Min + r.Max) / 2
	}
	return g
}

func testAgent(id uint64, r *Rules) components.Agent {
	return NewAgent(id, midGenes(), components.Position{X: 50, Y: 50}, r)
}

// ---------- MetabolicCost ----------

func TestMetabolicCost_SprintStatesCostMore(t *testing.T) {
	g := midGenes()
	base := MetabolicCost(&g, components.StateSeeking, 0.5, 0.1)
	for _, st := range []components.State{components.StateHunting, components.StateFleeing} {
		got := MetabolicCost(&g, st, 0.5, 0.1)
		if math.Abs(got-base*sprintCostMul) > 1e-12 {
			t.Errorf("%v cost = %v, want %v", st, got, base*sprintCostMul)
		}
	}
	if base <= 0 {
		t.Errorf("seeking cost = %v, want > 0", base)
	}
}

func TestMetabolicCost_ScalesWithDt(t *testing.T) {
	g := midGenes()
	a := MetabolicCost(&g, components.StateSeeking, 0.5, 0.1)
	b := MetabolicCost(&g, components.StateSeeking, 0.5, 0.2)
	if math.Abs(b-2*a) > 1e-12 {
		t.Errorf("cost(0.2) = %v, want %v", b, 2*a)
	}
}

// ---------- Age ----------

func TestAge(t *testing.T) {
	r := testRules()

	tests := []struct {
		name      string
		energy    float64
		age       float64
		cost      float64
		wantDeath components.DeathReason
	}{
		{"healthy", 50, 1, 1, components.DeathNone},
		{"starves", 0.5, 1, 1, components.DeathStarvation},
		{"exactly empty starves", 1, 1, 1, components.DeathStarvation},
		{"old age", 50, r.MaxAge, 1, components.DeathOldAge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := testAgent(1, &r)
			a.Energy = tc.energy
			a.Age = tc.age
			Age(&a, tc.cost, 0.1, &r)
			if a.Death != tc.wantDeath {
				t.Errorf("death = %v, want %v", a.Death, tc.wantDeath)
			}
			if math.Abs(a.Age-(tc.age+0.1)) > 1e-12 {
				t.Errorf("age = %v, want %v", a.Age, tc.age+0.1)
			}
		})
	}
}

// ---------- Feed ----------

func TestFeed_TransfersAndMarksDepleting(t *testing.T) {
	r := testRules()
	a := testAgent(1, &r)
	a.Energy = 10
	res := components.ResourceState{Energy: 100, MaxEnergy: 100, SpawnFade: 1, DepleteFade: 1}

	gained := Feed(&a, &res, &r)

	want := r.ConsumeAmount * a.Genes[traits.EnergyEfficiency]
	if math.Abs(gained-want) > 1e-9 || math.Abs(a.Energy-(10+want)) > 1e-9 {
		t.Errorf("gained %v energy %v, want %v", gained, a.Energy, want)
	}
	if !res.Depleting {
		t.Error("resource not marked depleting")
	}
	if res.Available(r.AvailabilityThreshold) {
		t.Error("depleting resource still available")
	}
}

func TestFeed_CapsAtMaxEnergy(t *testing.T) {
	r := testRules()
	a := testAgent(1, &r)
	a.Energy = a.MaxEnergy - 1
	res := components.ResourceState{Energy: 100, SpawnFade: 1, DepleteFade: 1}

	if gained := Feed(&a, &res, &r); math.Abs(gained-1) > 1e-9 {
		t.Errorf("gained = %v, want 1", gained)
	}
	if a.Energy != a.MaxEnergy {
		t.Errorf("energy = %v, want %v", a.Energy, a.MaxEnergy)
	}
}

// ---------- Resources ----------

func TestFeed_KeepsEnergyAboveMax(t *testing.T) {
	r := testRules()
	a := testAgent(1, &r)
	a.Energy = a.MaxEnergy + 30
	res := components.ResourceState{Energy: 100, MaxEnergy: 100, SpawnFade: 1, DepleteFade: 1}

	if gain := Feed(&a, &res, &r); gain != 0 {
		t.Errorf("gain = %v, want 0", gain)
	}
	if a.Energy != a.MaxEnergy+30 {
		t.Errorf("energy = %v, want %v", a.Energy, a.MaxEnergy+30)
	}
}

func TestNewResource_WithinConfiguredRanges(t *testing.T) {
	r := testRules()
	rng := rand.New(rand.NewPCG(1, 2))
	c := r.Resource
	for i := 0; i < 100; i++ {
		res := NewResource(uint64(i+1), components.Position{}, rng, &r)
		if res.Energy != 0 || res.SpawnFade != 0 || res.DepleteFade != 1 {
			t.Fatalf("fresh resource state = %+v", res.ResourceState)
		}
		if res.TargetEnergy < c.TargetEnergyMin || res.TargetEnergy > c.TargetEnergyMax {
			t.Errorf("target %v outside [%v, %v]", res.TargetEnergy, c.TargetEnergyMin, c.TargetEnergyMax)
		}
		if res.GrowthRate < c.GrowthRateMin || res.GrowthRate > c.GrowthRateMax {
			t.Errorf("growth %v outside [%v, %v]", res.GrowthRate, c.GrowthRateMin, c.GrowthRateMax)
		}
	}
}

func TestGrowResource(t *testing.T) {
	r := testRules()
	base := components.ResourceState{
		Energy: 10, MaxEnergy: 100, TargetEnergy: 50,
		GrowthRate: 4, RegenerationRate: 1, SpawnFade: 0.5, DepleteFade: 1,
	}

	t.Run("grows toward target", func(t *testing.T) {
		got := GrowResource(base, 1, &r)
		if got.Energy != 14 {
			t.Errorf("energy = %v, want 14", got.Energy)
		}
		if got.SpawnFade <= base.SpawnFade {
			t.Errorf("spawn fade did not advance: %v", got.SpawnFade)
		}
	})

	t.Run("regenerates above target", func(t *testing.T) {
		s := base
		s.Energy = 60
		if got := GrowResource(s, 1, &r); got.Energy != 61 {
			t.Errorf("energy = %v, want 61", got.Energy)
		}
	})

	t.Run("caps at max", func(t *testing.T) {
		s := base
		s.Energy = 99.5
		if got := GrowResource(s, 1, &r); got.Energy != 100 {
			t.Errorf("energy = %v, want 100", got.Energy)
		}
	})

	t.Run("depleting only fades", func(t *testing.T) {
		s := base
		s.Depleting = true
		got := GrowResource(s, 1, &r)
		if got.Energy != s.Energy {
			t.Errorf("depleting resource grew to %v", got.Energy)
		}
		if got.DepleteFade >= 1 {
			t.Errorf("deplete fade = %v, want < 1", got.DepleteFade)
		}
	})

	t.Run("fade finishes", func(t *testing.T) {
		s := base
		s.Depleting = true
		for i := 0; i < 1000 && !s.Gone(); i++ {
			s = GrowResource(s, 0.1, &r)
		}
		if !s.Gone() {
			t.Errorf("resource never faded out: %+v", s)
		}
	})
}
