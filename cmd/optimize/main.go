// Package main searches for simulation configurations that produce stable,
// dynamic ecosystems: a grid sweep with optional variation rounds, or CMA-ES.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/harness"
	"github.com/pthm-cable/evosim/headless"
	"github.com/pthm-cable/evosim/store"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

type options struct {
	configPath string
	mode       string
	outputDir  string
	sweepID    string
	storeKind  string
	duration   float64
	parallel   int
	workers    int
	accept     float64

	rounds     int
	variations int
	rngSeed    uint64

	seeds      int
	maxEvals   int
	population int
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.StringVar(&o.mode, "mode", "grid", "Search mode: grid or cmaes")
	flag.StringVar(&o.outputDir, "output", "", "Output directory for results")
	flag.StringVar(&o.sweepID, "sweep-id", "", "Sweep identifier; reuse one to resume (empty = new)")
	flag.StringVar(&o.storeKind, "store", "sqlite", "Result store: sqlite or memory")
	flag.Float64Var(&o.duration, "duration", 0, "Target duration per run in virtual minutes (0 = config)")
	flag.IntVar(&o.parallel, "parallel", 0, "Concurrent runs (0 = GOMAXPROCS)")
	flag.IntVar(&o.workers, "workers", 1, "Worker goroutines per run")
	flag.Float64Var(&o.accept, "accept", 0, "Stop a sweep once a score reaches this (0 = off)")
	flag.IntVar(&o.rounds, "rounds", 0, "Variation rounds around the best grid result")
	flag.IntVar(&o.variations, "variations", 8, "Candidates per variation round")
	flag.Uint64Var(&o.rngSeed, "rng-seed", 42, "Seed for variation sampling")
	flag.IntVar(&o.seeds, "seeds", 3, "Seeds per CMA-ES evaluation")
	flag.IntVar(&o.maxEvals, "max-evals", 200, "Maximum CMA-ES evaluations")
	flag.IntVar(&o.population, "population", 0, "CMA-ES population size (0 = auto)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(o); err != nil {
		slog.Error("optimize failed", "error", err)
		os.Exit(1)
	}
}

func run(o options) error {
	if o.outputDir == "" {
		return fmt.Errorf("--output is required")
	}
	if err := os.MkdirAll(o.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	base, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.duration > 0 {
		base.TargetDurationMinutes = o.duration
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := store.New(o.storeKind, filepath.Join(o.outputDir, "results.db"))
	if err != nil {
		return err
	}
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if o.sweepID == "" {
		o.sweepID = uuid.NewString()
	}
	slog.Info("starting search", "mode", o.mode, "sweep_id", o.sweepID, "output", o.outputDir)

	startTime := time.Now()
	var (
		results []harness.TestResult
		bestCfg *config.Config
	)
	switch o.mode {
	case "grid":
		results, err = gridSearch(ctx, base, st, o)
		if len(results) > 0 {
			bestCfg = results[0].Config
		}
	case "cmaes":
		results, bestCfg, err = cmaesSearch(ctx, base, st, o)
	default:
		return fmt.Errorf("unknown mode %q", o.mode)
	}
	if err != nil && len(results) == 0 {
		return err
	}
	if err != nil {
		slog.Warn("search interrupted", "error", err)
	}

	slog.Info("search complete", "elapsed", formatDuration(time.Since(startTime)))
	return writeReport(o.outputDir, results, bestCfg)
}

// progress returns an OnResult callback that logs each finished run.
func progress(total int) func(harness.TestResult) {
	done := 0
	start := time.Now()
	return func(r harness.TestResult) {
		done++
		elapsed := time.Since(start)
		attrs := []any{
			"label", r.Label,
			"score", r.Score,
			"passed", r.Passed,
			"termination", r.Termination,
			"notes", r.Notes,
			"elapsed", formatDuration(elapsed),
		}
		if total > 0 {
			remaining := time.Duration(total-done) * (elapsed / time.Duration(done))
			attrs = append(attrs, "done", done, "total", total, "eta", formatDuration(remaining))
		}
		slog.Info("run finished", attrs...)
	}
}

func gridSearch(ctx context.Context, base *config.Config, st store.Store, o options) ([]harness.TestResult, error) {
	opts := harness.SweepOptions{
		Parallel:    o.parallel,
		AcceptScore: o.accept,
		Run:         headless.Options{Workers: o.workers},
		Store:       st,
		SweepID:     o.sweepID,
	}

	cands := harness.DefaultGrid(base)
	opts.OnResult = progress(len(cands))
	results, err := harness.Sweep(ctx, cands, opts)
	if err != nil {
		return results, err
	}

	rng := rand.New(rand.NewPCG(o.rngSeed, 0))
	for round := 1; round <= o.rounds && len(results) > 0; round++ {
		if o.accept > 0 && results[0].Score >= o.accept {
			break
		}
		best := results[0]
		slog.Info("variation round", "round", round, "around", best.Label, "score", best.Score)

		cands := harness.Variations(best.Config, o.variations, rng)
		for i := range cands {
			cands[i].Label = fmt.Sprintf("round=%d,%s", round, cands[i].Label)
		}
		opts.OnResult = progress(len(cands))
		more, err := harness.Sweep(ctx, cands, opts)
		results = append(results, more...)
		harness.Rank(results)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func cmaesSearch(ctx context.Context, base *config.Config, st store.Store, o options) ([]harness.TestResult, *config.Config, error) {
	seeds := make([]int64, o.seeds)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}

	res, err := harness.Optimize(ctx, base, harness.NewParamVector(), harness.OptimizeOptions{
		Seeds:      seeds,
		MaxEvals:   o.maxEvals,
		Population: o.population,
		Run:        headless.Options{Workers: o.workers},
		Store:      st,
		SweepID:    o.sweepID,
		OnResult:   progress(0),
	})
	if res == nil {
		return nil, nil, err
	}

	attrs := []any{"quality", res.BestQuality, "evaluations", res.Evaluations}
	for i, name := range res.Params.Names() {
		attrs = append(attrs, name, res.BestParams[i])
	}
	slog.Info("best parameters", attrs...)

	return res.Results, res.BestConfig, err
}
