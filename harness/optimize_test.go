package harness

import (
	"context"
	"math"
	"testing"

	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/store"
)

func TestParamVectorNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.ExtractFromConfig(config.Default())
	if len(raw) != pv.Dim() || len(pv.Names()) != pv.Dim() {
		t.Fatalf("dim mismatch: %d values, %d names, dim %d", len(raw), len(pv.Names()), pv.Dim())
	}
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-9 {
			t.Errorf("%s: %v -> %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}
}

func TestParamVectorClamp(t *testing.T) {
	pv := NewParamVector()
	v := make([]float64, pv.Dim())
	for i := range v {
		v[i] = -1e9
	}
	for i, c := range pv.Clamp(v) {
		if c != pv.Specs[i].Min {
			t.Errorf("%s clamped to %v, want %v", pv.Specs[i].Name, c, pv.Specs[i].Min)
		}
	}
}

func TestParamVectorApplyToConfig(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Default()
	cfg.MaxAgents = 100

	values := pv.ExtractFromConfig(cfg)
	values[0] = 612.6 // initial_agents
	values[2] = 1e6   // resource_spawn_rate, above bound
	pv.ApplyToConfig(cfg, values)

	if cfg.InitialAgents != 613 {
		t.Errorf("initial agents = %d, want 613", cfg.InitialAgents)
	}
	if cfg.MaxAgents != 613 {
		t.Errorf("max agents = %d, want raised to 613", cfg.MaxAgents)
	}
	if cfg.ResourceSpawnRate != pv.Specs[2].Max {
		t.Errorf("spawn rate = %v, want clamped to %v", cfg.ResourceSpawnRate, pv.Specs[2].Max)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("applied config invalid: %v", err)
	}

	got := pv.ExtractFromConfig(cfg)
	if got[0] != 613 || got[2] != pv.Specs[2].Max {
		t.Errorf("extract = %v", got)
	}
}

func TestOptimize(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.Init(ctx); err != nil {
		t.Fatal(err)
	}

	base := baseConfig(t)
	var seen int
	res, err := Optimize(ctx, base, NewParamVector(), OptimizeOptions{
		Seeds:      []int64{1, 2},
		MaxEvals:   3,
		Population: 4,
		Store:      st,
		SweepID:    "cma",
		OnResult:   func(TestResult) { seen++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Evaluations < 1 || res.Evaluations > 3 {
		t.Errorf("evaluations = %d, want 1..3", res.Evaluations)
	}
	if len(res.Results) != 2*res.Evaluations || seen != len(res.Results) {
		t.Errorf("results = %d, callbacks = %d for %d evaluations", len(res.Results), seen, res.Evaluations)
	}
	if res.BestQuality < 0 || res.BestQuality > 1 || res.BestConfig == nil {
		t.Errorf("best quality = %v, config = %v", res.BestQuality, res.BestConfig)
	}
	if len(res.BestParams) != res.Params.Dim() {
		t.Errorf("best params = %v", res.BestParams)
	}
	if err := res.BestConfig.Validate(); err != nil {
		t.Errorf("best config invalid: %v", err)
	}
	if seed := res.Best.Config.Seed; seed != 1 && seed != 2 {
		t.Errorf("best run seed = %d", seed)
	}

	stored, err := st.ListEvaluations(ctx, "cma")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != len(res.Results) {
		t.Errorf("stored = %d, want %d", len(stored), len(res.Results))
	}
}

func TestOptimizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Optimize(ctx, baseConfig(t), NewParamVector(), OptimizeOptions{MaxEvals: 2}); err == nil {
		t.Fatal("expected an error for a canceled search")
	}
}
