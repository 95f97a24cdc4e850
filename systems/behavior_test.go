package systems

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/traits"
)

// buildView wires a snapshot and its grids the way the engine does each tick.
func buildView(r *Rules, agents []components.Agent, resources []components.Resource) *View {
	v := &View{
		Agents:       agents,
		Resources:    resources,
		AgentGrid:    NewSpatialGrid(r.Width, r.Height, 50),
		ResourceGrid: NewSpatialGrid(r.Width, r.Height, 50),
		BreedingOpen: true,
	}
	for i := range agents {
		v.AgentPos = append(v.AgentPos, agents[i].Pos)
	}
	for i := range resources {
		v.ResourcePos = append(v.ResourcePos, resources[i].Pos)
	}
	v.AgentGrid.Rebuild(v.AgentPos)
	v.ResourceGrid.Rebuild(v.ResourcePos)
	return v
}

func agentAt(id uint64, x, y float64, r *Rules) components.Agent {
	a := testAgent(id, r)
	a.Pos = components.Position{X: x, Y: y}
	return a
}

func resourceAt(id uint64, x, y float64) components.Resource {
	return components.Resource{
		ResourceState: components.ResourceState{
			ID: id, Energy: 40, MaxEnergy: 100, TargetEnergy: 50,
			SpawnFade: 1, DepleteFade: 1,
		},
		Pos: components.Position{X: x, Y: y},
	}
}

func decide(t *testing.T, v *View, r *Rules, i int) Intent {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, uint64(i)))
	in, _ := Decide(i, v, r, 0.1, rng, nil)
	return in
}

func TestDecide_FleesPredator(t *testing.T) {
	r := testRules()
	prey := agentAt(1, 100, 100, &r)
	pred := agentAt(2, 120, 100, &r)
	pred.Predator = true
	v := buildView(&r, []components.Agent{prey, pred}, nil)

	in := decide(t, v, &r, 0)
	if in.State != components.StateFleeing {
		t.Fatalf("state = %v, want fleeing", in.State)
	}
	if in.Vel.X >= 0 {
		t.Errorf("fleeing toward threat: vel = %+v", in.Vel)
	}
	wantSpeed := prey.Genes[traits.Speed] * r.MoveScale * fleeSpeedMul
	if math.Abs(in.Vel.Speed()-wantSpeed) > 1e-9 {
		t.Errorf("speed = %v, want %v", in.Vel.Speed(), wantSpeed)
	}
}

func TestDecide_PredatorFightsInContact(t *testing.T) {
	r := testRules()
	prey := agentAt(1, 100, 100, &r)
	pred := agentAt(2, 102, 100, &r)
	pred.Predator = true
	v := buildView(&r, []components.Agent{prey, pred}, nil)

	in := decide(t, v, &r, 1)
	if in.State != components.StateFighting || in.Target != 0 {
		t.Errorf("intent = %+v, want fighting slot 0", in)
	}
}

// crowdAt returns n prey sharing one position, with ids from firstID.
func crowdAt(firstID uint64, n int, x, y float64, r *Rules) []components.Agent {
	crowd := make([]components.Agent, n)
	for i := range crowd {
		crowd[i] = agentAt(firstID+uint64(i), x, y, r)
	}
	return crowd
}

func TestDecide_CrowdDoesNotHideNeighbors(t *testing.T) {
	r := testRules()

	t.Run("prey flees predator behind a crowd", func(t *testing.T) {
		// The crowd sits in the first column the query scans
		agents := crowdAt(1, 130, 430, 400, &r)
		prey := agentAt(200, 500, 400, &r)
		pred := agentAt(201, 540, 400, &r)
		pred.Predator = true
		agents = append(agents, prey, pred)
		v := buildView(&r, agents, nil)

		in := decide(t, v, &r, 130)
		if in.State != components.StateFleeing {
			t.Errorf("state = %v, want fleeing", in.State)
		}
	})

	t.Run("predator fights prey in contact behind a crowd", func(t *testing.T) {
		agents := crowdAt(1, 130, 360, 400, &r)
		pred := agentAt(200, 500, 400, &r)
		pred.Predator = true
		near := agentAt(201, 502, 400, &r)
		agents = append(agents, pred, near)
		v := buildView(&r, agents, nil)

		in := decide(t, v, &r, 130)
		if in.State != components.StateFighting || in.Target != 131 {
			t.Errorf("intent = %+v, want fighting slot 131", in)
		}
	})
}

func TestDecide_PredatorHuntsInTerritory(t *testing.T) {
	r := testRules()
	prey := agentAt(1, 100, 100, &r)
	pred := agentAt(2, 140, 100, &r)
	pred.Predator = true
	v := buildView(&r, []components.Agent{prey, pred}, nil)

	in := decide(t, v, &r, 1)
	if in.State != components.StateHunting {
		t.Fatalf("state = %v, want hunting", in.State)
	}
	if in.Vel.X >= 0 {
		t.Errorf("hunting away from prey: vel = %+v", in.Vel)
	}
}

func TestDecide_Reproduces(t *testing.T) {
	r := testRules()
	mk := func(id uint64, x float64) components.Agent {
		a := agentAt(id, x, 100, &r)
		a.Age = r.MaturityAge + 1
		a.Energy = 90
		a.Genes[traits.ReproductionThreshold] = 50
		a.Genes[traits.Aggression] = 0
		return a
	}
	agents := []components.Agent{mk(1, 100), mk(2, 110)}

	v := buildView(&r, agents, nil)
	in := decide(t, v, &r, 0)
	if in.State != components.StateReproducing || in.Target != 1 {
		t.Errorf("intent = %+v, want reproducing with slot 1", in)
	}

	v.BreedingOpen = false
	if in := decide(t, v, &r, 0); in.State == components.StateReproducing {
		t.Error("reproducing while breeding is closed")
	}
}

func TestDecide_FeedsAndSeeks(t *testing.T) {
	r := testRules()
	a := agentAt(1, 100, 100, &r)

	t.Run("feeds in contact", func(t *testing.T) {
		v := buildView(&r, []components.Agent{a}, []components.Resource{resourceAt(1, 101, 100)})
		in := decide(t, v, &r, 0)
		if in.State != components.StateFeeding || in.Resource != 0 {
			t.Errorf("intent = %+v, want feeding slot 0", in)
		}
	})

	t.Run("seeks visible resource", func(t *testing.T) {
		v := buildView(&r, []components.Agent{a}, []components.Resource{resourceAt(1, 100, 130)})
		in := decide(t, v, &r, 0)
		if in.State != components.StateSeeking || in.Vel.Y <= 0 {
			t.Errorf("intent = %+v, want seeking toward +y", in)
		}
	})

	t.Run("ignores depleting resource", func(t *testing.T) {
		res := resourceAt(1, 101, 100)
		res.Depleting = true
		v := buildView(&r, []components.Agent{a}, []components.Resource{res})
		if in := decide(t, v, &r, 0); in.State == components.StateFeeding {
			t.Error("feeding on a depleting resource")
		}
	})
}

func TestDecide_WandersAlone(t *testing.T) {
	r := testRules()
	a := agentAt(1, 100, 100, &r)
	v := buildView(&r, []components.Agent{a}, nil)

	in := decide(t, v, &r, 0)
	if in.State != components.StateSeeking {
		t.Errorf("state = %v, want seeking", in.State)
	}
	want := a.Genes[traits.Speed] * r.MoveScale
	if math.Abs(in.Vel.Speed()-want) > 1e-9 {
		t.Errorf("wander speed = %v, want %v", in.Vel.Speed(), want)
	}
	if in.Cost <= 0 {
		t.Errorf("cost = %v, want > 0", in.Cost)
	}
	if in.Pos.X < 0 || in.Pos.X >= r.Width || in.Pos.Y < 0 || in.Pos.Y >= r.Height {
		t.Errorf("position left the world: %+v", in.Pos)
	}
}

func TestDecide_DeterministicForSameStream(t *testing.T) {
	r := testRules()
	v := buildView(&r, []components.Agent{agentAt(1, 10, 10, &r)}, nil)
	a := decide(t, v, &r, 0)
	b := decide(t, v, &r, 0)
	if a != b {
		t.Errorf("intents differ: %+v vs %+v", a, b)
	}
}
