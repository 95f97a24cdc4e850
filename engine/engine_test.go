package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/config"
)

var kinds = []struct {
	name         string
	dataOriented bool
}{
	{"legacy", false},
	{"data_oriented", true},
}

// smallConfig returns a fast world for tests.
func smallConfig(t *testing.T, dataOriented bool) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Width, cfg.Height = 400, 300
	cfg.MaxAgents, cfg.MaxResources = 120, 200
	cfg.InitialAgents, cfg.InitialResources = 60, 120
	cfg.UseDataOrientedEngine = dataOriented
	cfg.Seed = 7
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func newSim(t *testing.T, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	sim, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(sim.Close)
	return sim
}

func TestNewSelectsBackend(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			sim := newSim(t, smallConfig(t, k.dataOriented), Options{})
			want := KindLegacy
			if k.dataOriented {
				want = KindDataOriented
			}
			if sim.Kind() != want {
				t.Errorf("Kind() = %v, want %v", sim.Kind(), want)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxAgents = 1
	cfg.InitialAgents = 10
	if _, err := New(cfg, Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("New error = %v, want ErrInvalid", err)
	}
}

func TestInitialPopulation(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			cfg := smallConfig(t, k.dataOriented)
			sim := newSim(t, cfg, Options{})

			st := sim.Stats()
			if st.AgentCount != cfg.InitialAgents || st.ResourceCount != cfg.InitialResources {
				t.Fatalf("counts = %d/%d, want %d/%d",
					st.AgentCount, st.ResourceCount, cfg.InitialAgents, cfg.InitialResources)
			}

			agents := sim.Agents(nil)
			for i, a := range agents {
				if a.ID != uint64(i+1) {
					t.Errorf("agent %d id = %d, want %d", i, a.ID, i+1)
				}
				if a.ParentA != 0 || a.ParentB != 0 || a.Generation != 0 {
					t.Errorf("founder %d has lineage %+v", a.ID, a.Identity)
				}
				if !a.Genes.Valid() {
					t.Errorf("agent %d genes out of range: %v", a.ID, a.Genes)
				}
			}
			for _, r := range sim.Resources(nil) {
				if r.SpawnFade != 1 || r.Energy <= 0 {
					t.Errorf("initial resource %d not mature: %+v", r.ID, r.ResourceState)
				}
			}
		})
	}
}

func TestStepRespectsCapsAndGeneBounds(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			cfg := smallConfig(t, k.dataOriented)
			cfg.ResourceSpawnRate = 50
			sim := newSim(t, cfg, Options{})

			var agents []components.Agent
			for step := 0; step < 300; step++ {
				st := sim.Step(cfg.Derived.DT)
				if st.AgentCount > cfg.MaxAgents {
					t.Fatalf("step %d: agents %d > max %d", step, st.AgentCount, cfg.MaxAgents)
				}
				if st.ResourceCount > cfg.MaxResources {
					t.Fatalf("step %d: resources %d > max %d", step, st.ResourceCount, cfg.MaxResources)
				}
				agents = sim.Agents(agents[:0])
				for _, a := range agents {
					if !a.Genes.Valid() {
						t.Fatalf("step %d: agent %d genes out of range", step, a.ID)
					}
					if a.Energy <= 0 {
						t.Fatalf("step %d: agent %d stored with energy %v", step, a.ID, a.Energy)
					}
					if !a.Alive() {
						t.Fatalf("step %d: dead agent %d still stored", step, a.ID)
					}
				}
			}
		})
	}
}

func TestOffspringLineage(t *testing.T) {
	cfg := smallConfig(t, true)
	cfg.Reproduction.MaturityAge = 0
	cfg.Reproduction.Cooldown = 0
	sim := newSim(t, cfg, Options{})

	for step := 0; step < 300 && sim.Stats().TotalBirths == 0; step++ {
		sim.Step(cfg.Derived.DT)
	}
	if sim.Stats().TotalBirths == 0 {
		t.Skip("no births in this world")
	}
	for _, a := range sim.Agents(nil) {
		if a.ParentA == 0 {
			continue
		}
		if a.Generation == 0 || a.ParentB == 0 {
			t.Errorf("offspring %d lineage %+v", a.ID, a.Identity)
		}
		if a.ParentA >= a.ID || a.ParentB >= a.ID {
			t.Errorf("offspring %d has younger parent %+v", a.ID, a.Identity)
		}
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			run := func(workers int) ([]components.Agent, Stats) {
				cfg := smallConfig(t, k.dataOriented)
				cfg.Parallel.Threshold = 1
				sim := newSim(t, cfg, Options{Workers: workers})
				var st Stats
				for i := 0; i < 150; i++ {
					st = sim.Step(cfg.Derived.DT)
				}
				return sim.Agents(nil), st
			}

			a1, s1 := run(1)
			a4, s4 := run(4)
			if s1 != s4 {
				t.Errorf("stats differ:\n1 worker:  %+v\n4 workers: %+v", s1, s4)
			}
			if !reflect.DeepEqual(a1, a4) {
				t.Error("agent state differs between 1 and 4 workers")
			}
		})
	}
}

func TestBackendsAgree(t *testing.T) {
	legacy := newSim(t, smallConfig(t, false), Options{})
	ecs := newSim(t, smallConfig(t, true), Options{})
	dt := config.Default().Derived.DT

	for i := 0; i < 200; i++ {
		sl := legacy.Step(dt)
		se := ecs.Step(dt)
		if sl != se {
			t.Fatalf("step %d stats differ:\nlegacy: %+v\necs:    %+v", i, sl, se)
		}
	}
	if !reflect.DeepEqual(legacy.Agents(nil), ecs.Agents(nil)) {
		t.Error("agents differ between backends")
	}
	if !reflect.DeepEqual(legacy.Resources(nil), ecs.Resources(nil)) {
		t.Error("resources differ between backends")
	}
}

func TestSeedOptionChangesWorld(t *testing.T) {
	cfg := smallConfig(t, true)
	a := newSim(t, cfg, Options{Seed: 1}).Agents(nil)
	b := newSim(t, cfg, Options{Seed: 2}).Agents(nil)
	if reflect.DeepEqual(a, b) {
		t.Error("different seeds produced identical founders")
	}
}

func TestAddAtCapacity(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			cfg := smallConfig(t, k.dataOriented)
			cfg.MaxAgents, cfg.InitialAgents = 5, 4
			cfg.MaxResources, cfg.InitialResources = 3, 3
			sim := newSim(t, cfg, Options{})

			if !sim.AddAgent(10, 10) {
				t.Fatal("AddAgent below capacity = false")
			}
			if sim.AddAgent(20, 20) {
				t.Error("AddAgent at capacity = true")
			}
			if got := sim.Stats().AgentCount; got != 5 {
				t.Errorf("AgentCount = %d, want 5", got)
			}
			if sim.AddResource(5, 5) {
				t.Error("AddResource at capacity = true")
			}
			if got := sim.Stats().ResourceCount; got != 3 {
				t.Errorf("ResourceCount = %d, want 3", got)
			}
		})
	}
}

func TestAddWrapsPosition(t *testing.T) {
	sim := newSim(t, smallConfig(t, false), Options{})
	if !sim.AddAgent(-10, 310) {
		t.Fatal("AddAgent = false")
	}
	agents := sim.Agents(nil)
	last := agents[len(agents)-1]
	if last.Pos.X != 390 || last.Pos.Y != 10 {
		t.Errorf("wrapped position = %+v, want (390, 10)", last.Pos)
	}
}

func TestStepNonPositiveDt(t *testing.T) {
	sim := newSim(t, smallConfig(t, true), Options{})
	before := sim.Stats()
	for _, dt := range []float64{0, -1} {
		if got := sim.Step(dt); got != before {
			t.Errorf("Step(%v) changed stats: %+v", dt, got)
		}
	}
}

func TestStatsIsReadOnly(t *testing.T) {
	sim := newSim(t, smallConfig(t, true), Options{})
	sim.Step(0.1)
	a := sim.Stats()
	b := sim.Stats()
	if a != b || a.Tick != 1 {
		t.Errorf("Stats() = %+v then %+v", a, b)
	}
}

func TestResetRestoresInitialWorld(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			cfg := smallConfig(t, k.dataOriented)
			sim := newSim(t, cfg, Options{})
			initial := sim.Agents(nil)
			initialStats := sim.Stats()

			for i := 0; i < 50; i++ {
				sim.Step(cfg.Derived.DT)
			}
			sim.Reset()

			if got := sim.Stats(); got != initialStats {
				t.Errorf("stats after reset = %+v, want %+v", got, initialStats)
			}
			if !reflect.DeepEqual(sim.Agents(nil), initial) {
				t.Error("agents after reset differ from initial world")
			}
		})
	}
}

func TestEmptyWorldStaysEmpty(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			cfg := smallConfig(t, k.dataOriented)
			cfg.InitialAgents = 0
			sim := newSim(t, cfg, Options{})
			for i := 0; i < 20; i++ {
				st := sim.Step(cfg.Derived.DT)
				if st.AgentCount != 0 || st.AverageEnergy != 0 {
					t.Fatalf("empty world stats = %+v", st)
				}
			}
		})
	}
}

func TestStarvationEmptiesWorld(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			cfg := smallConfig(t, k.dataOriented)
			cfg.InitialResources = 0
			cfg.ResourceSpawnRate = 0
			cfg.Agent.BaseCost = 100
			sim := newSim(t, cfg, Options{})

			var st Stats
			for i := 0; i < 200 && (i == 0 || st.AgentCount > 0); i++ {
				st = sim.Step(cfg.Derived.DT)
			}
			if st.AgentCount != 0 {
				t.Fatalf("agents = %d after starvation run", st.AgentCount)
			}
			if st.TotalDeaths < uint64(cfg.InitialAgents) {
				t.Errorf("TotalDeaths = %d, want >= %d", st.TotalDeaths, cfg.InitialAgents)
			}
			if st.StarvationDeaths == 0 {
				t.Error("no starvation deaths recorded")
			}
		})
	}
}

func TestShortScenario(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.InitialAgents, cfg.InitialResources = 10, 20
			cfg.TargetDurationMinutes = 0.1
			cfg.SpeedMultiplier = 5
			cfg.UseDataOrientedEngine = k.dataOriented
			sim := newSim(t, cfg, Options{})
			cfg = cfg.Clone()
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}

			steps := 0
			var st Stats
			for st.SimTime < cfg.Derived.TargetSeconds {
				st = sim.Step(cfg.Derived.DT)
				steps++
			}
			if steps == 0 || st.Tick != uint64(steps) {
				t.Errorf("steps = %d, tick = %d", steps, st.Tick)
			}
			if st.AgentCount > cfg.MaxAgents {
				t.Errorf("agents %d > max %d", st.AgentCount, cfg.MaxAgents)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	agents := []components.Agent{
		{Identity: components.Identity{ID: 1, Generation: 2, Predator: true}, Vitals: components.Vitals{Energy: 10, Age: 1}},
		{Identity: components.Identity{ID: 2, Generation: 4}, Vitals: components.Vitals{Energy: 30, Age: 3}},
	}
	resources := []components.Resource{
		{ResourceState: components.ResourceState{ID: 1, Energy: 5}},
	}
	st := computeStats(agents, resources)
	if st.AgentCount != 2 || st.PredatorCount != 1 || st.ResourceCount != 1 {
		t.Errorf("counts = %+v", st)
	}
	if st.TotalEnergy != 40 || st.AverageEnergy != 20 || st.ResourceEnergy != 5 {
		t.Errorf("energy = %v/%v/%v", st.TotalEnergy, st.AverageEnergy, st.ResourceEnergy)
	}
	if st.AverageGeneration != 3 || st.MaxGeneration != 4 || st.AverageAge != 2 {
		t.Errorf("generation/age = %v/%v/%v", st.AverageGeneration, st.MaxGeneration, st.AverageAge)
	}
}
