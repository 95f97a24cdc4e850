package harness

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/headless"
	"github.com/pthm-cable/evosim/store"
)

// Default grid over founder counts.
var (
	DefaultAgentCounts    = []int{100, 200, 300, 400, 500, 600, 700, 800}
	DefaultResourceCounts = []int{200, 300, 400, 500, 600, 700, 800, 900}
)

// SweepOptions tunes a sweep.
type SweepOptions struct {
	// Parallel bounds concurrent runs (0 = GOMAXPROCS).
	Parallel int
	// AcceptScore stops the sweep once a result reaches it (0 = off).
	AcceptScore float64
	// Run is passed to every headless run.
	Run headless.Options

	// Store persists every result under SweepID. Candidates whose label is
	// already stored for SweepID are not re-run.
	Store   store.Store
	SweepID string

	// OnResult is called once per finished candidate, serialized.
	OnResult func(TestResult)
}

// Grid returns one candidate per (agents, resources) pair, raising the
// population caps where a pair would exceed them.
func Grid(base *config.Config, agents, resources []int) []Candidate {
	out := make([]Candidate, 0, len(agents)*len(resources))
	for _, a := range agents {
		for _, r := range resources {
			cfg := base.Clone()
			cfg.InitialAgents = a
			cfg.InitialResources = r
			cfg.MaxAgents = max(cfg.MaxAgents, a)
			cfg.MaxResources = max(cfg.MaxResources, r)
			out = append(out, Candidate{
				Label:  fmt.Sprintf("agents=%d,resources=%d", a, r),
				Config: cfg,
			})
		}
	}
	return out
}

// DefaultGrid is Grid over DefaultAgentCounts x DefaultResourceCounts.
func DefaultGrid(base *config.Config) []Candidate {
	return Grid(base, DefaultAgentCounts, DefaultResourceCounts)
}

// Variations perturbs base n times: founder counts by up to 20% either way,
// spawn rate by a factor in [0.5, 1.5] and stability threshold by a factor
// in [0.8, 1.2].
func Variations(base *config.Config, n int, rng *rand.Rand) []Candidate {
	out := make([]Candidate, 0, n)
	for i := range n {
		cfg := base.Clone()

		agentSpread := int(float64(base.InitialAgents) * 0.2)
		cfg.InitialAgents = max(base.InitialAgents+rng.IntN(2*agentSpread+1)-agentSpread, 50)
		cfg.InitialAgents = min(cfg.InitialAgents, cfg.MaxAgents)

		resourceSpread := int(float64(base.InitialResources) * 0.2)
		cfg.InitialResources = max(base.InitialResources+rng.IntN(2*resourceSpread+1)-resourceSpread, 100)
		cfg.InitialResources = min(cfg.InitialResources, cfg.MaxResources)

		cfg.ResourceSpawnRate = base.ResourceSpawnRate * (0.5 + rng.Float64())
		cfg.StabilityThreshold = base.StabilityThreshold * (0.8 + 0.4*rng.Float64())

		out = append(out, Candidate{
			Label: fmt.Sprintf("variation=%d,agents=%d,resources=%d,spawn=%.3f",
				i, cfg.InitialAgents, cfg.InitialResources, cfg.ResourceSpawnRate),
			Config: cfg,
		})
	}
	return out
}

// Sweep evaluates candidates concurrently and returns the results best first.
// When AcceptScore is reached, runs still in flight are abandoned and
// candidates not yet started are skipped. The first evaluation or storage
// error cancels the sweep. If ctx is canceled the finished results are
// returned along with ctx.Err().
func Sweep(ctx context.Context, candidates []Candidate, opts SweepOptions) ([]TestResult, error) {
	done, err := storedResults(ctx, opts)
	if err != nil {
		return nil, err
	}

	acceptCtx, accept := context.WithCancel(ctx)
	defer accept()
	g, gctx := errgroup.WithContext(acceptCtx)
	g.SetLimit(cmp.Or(opts.Parallel, runtime.GOMAXPROCS(0)))

	var (
		mu       sync.Mutex
		results  = make([]*TestResult, len(candidates))
		accepted bool
	)
	finish := func(i int, r TestResult) {
		mu.Lock()
		defer mu.Unlock()
		results[i] = &r
		if opts.OnResult != nil {
			opts.OnResult(r)
		}
		if opts.AcceptScore > 0 && r.Score >= opts.AcceptScore && !accepted {
			accepted = true
			slog.Info("accept score reached", "label", r.Label, "score", r.Score)
			accept()
		}
	}

	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		if prev, ok := done[c.Label]; ok {
			finish(i, prev)
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := Evaluate(gctx, c, opts.Run)
			if err != nil {
				return err
			}
			if r.Diagnostics.Termination == headless.TerminationCanceled {
				return nil
			}
			if opts.Store != nil {
				ev, err := evaluationRecord(opts.SweepID, r)
				if err != nil {
					return err
				}
				if err := opts.Store.SaveEvaluation(ctx, ev); err != nil {
					return fmt.Errorf("persist %s: %w", c.Label, err)
				}
			}
			finish(i, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]TestResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	Rank(out)
	return out, ctx.Err()
}

// storedResults loads already-evaluated candidates of the sweep, keyed by label.
func storedResults(ctx context.Context, opts SweepOptions) (map[string]TestResult, error) {
	if opts.Store == nil || opts.SweepID == "" {
		return nil, nil
	}
	evs, err := opts.Store.ListEvaluations(ctx, opts.SweepID)
	if err != nil {
		return nil, fmt.Errorf("load sweep %s: %w", opts.SweepID, err)
	}
	done := make(map[string]TestResult, len(evs))
	for _, ev := range evs {
		if _, ok := done[ev.Label]; ok {
			continue
		}
		r, err := resultFromRecord(ev)
		if err != nil {
			return nil, err
		}
		done[ev.Label] = r
	}
	return done, nil
}

// Rank orders results by descending score, keeping candidate order on ties.
func Rank(results []TestResult) {
	slices.SortStableFunc(results, func(a, b TestResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
}
