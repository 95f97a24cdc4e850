package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/headless"
	"github.com/pthm-cable/evosim/store"
)

// OptimizeOptions tunes a CMA-ES search.
type OptimizeOptions struct {
	// Seeds are run for every parameter point; fitness is their mean quality.
	Seeds []int64
	// MaxEvals bounds parameter points evaluated.
	MaxEvals int
	// Population is the CMA-ES population size (0 = 4 + 3 ln dim).
	Population int
	// InitStepSize is the initial step in normalized [0,1] space.
	InitStepSize float64
	// Run is passed to every headless run. Its Seed is replaced per seed.
	Run headless.Options

	// Store persists every run under SweepID.
	Store   store.Store
	SweepID string
	// OnResult is called for every run, serialized.
	OnResult func(TestResult)
}

// OptimizeResult is the outcome of a search.
type OptimizeResult struct {
	Params      *ParamVector
	BestParams  []float64 // raw, clamped values
	BestQuality float64   // mean over seeds
	BestConfig  *config.Config
	Best        TestResult // best single-seed run at BestParams
	Evaluations int
	Results     []TestResult
}

// Optimize searches params around base with CMA-ES, minimizing negative mean
// quality. Evaluation or storage errors stop the search and are returned.
func Optimize(ctx context.Context, base *config.Config, params *ParamVector, opts OptimizeOptions) (*OptimizeResult, error) {
	if len(opts.Seeds) == 0 {
		opts.Seeds = []int64{42}
	}
	if opts.MaxEvals <= 0 {
		opts.MaxEvals = 100
	}
	if opts.InitStepSize <= 0 {
		opts.InitStepSize = 0.3
	}
	dim := params.Dim()
	popSize := opts.Population
	if popSize == 0 {
		popSize = 4 + int(3*math.Log(float64(dim)))
	}

	res := &OptimizeResult{Params: params, BestQuality: math.Inf(-1)}
	var evalErr error
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Worst possible fitness once the search is stopping
			if evalErr != nil || ctx.Err() != nil {
				return 0
			}

			raw := params.Clamp(params.Denormalize(x))
			cfg := base.Clone()
			params.ApplyToConfig(cfg, raw)
			res.Evaluations++

			results, err := evaluateSeeds(ctx, cfg, res.Evaluations, opts)
			if err != nil {
				evalErr = err
				return 0
			}
			if ctx.Err() != nil {
				return 0
			}
			res.Results = append(res.Results, results...)

			var quality float64
			best := results[0]
			for _, r := range results {
				quality += r.Score
				if r.Score > best.Score {
					best = r
				}
			}
			quality /= float64(len(results))

			if quality > res.BestQuality {
				res.BestQuality = quality
				res.BestParams = raw
				res.BestConfig = cfg
				res.Best = best
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(res.Evaluations)
			slog.Info("evaluation",
				"eval", res.Evaluations,
				"max_evals", opts.MaxEvals,
				"quality", quality,
				"best", res.BestQuality,
				"elapsed", elapsed.Round(time.Second).String(),
				"eta", (time.Duration(opts.MaxEvals-res.Evaluations) * avgPerEval).Round(time.Second).String(),
			)
			return -quality
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: opts.MaxEvals,
		Concurrent:      1, // sequential; seeds run in parallel
	}
	method := &optimize.CmaEsChol{
		InitStepSize: opts.InitStepSize,
		Population:   popSize,
	}

	slog.Info("starting CMA-ES optimization",
		"params", dim,
		"population", popSize,
		"max_evals", opts.MaxEvals,
		"seeds", len(opts.Seeds),
	)

	initX := params.Normalize(params.Clamp(params.ExtractFromConfig(base)))
	if _, err := optimize.Minimize(problem, initX, settings, method); err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if evalErr != nil {
		return nil, evalErr
	}
	if res.BestConfig == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("optimize: no evaluations completed")
	}
	Rank(res.Results)
	return res, ctx.Err()
}

// evaluateSeeds runs one parameter point once per seed, concurrently.
func evaluateSeeds(ctx context.Context, cfg *config.Config, eval int, opts OptimizeOptions) ([]TestResult, error) {
	results := make([]TestResult, len(opts.Seeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, seed := range opts.Seeds {
		g.Go(func() error {
			runOpts := opts.Run
			runOpts.Seed = seed
			r, err := Evaluate(gctx, Candidate{
				Label:  fmt.Sprintf("eval=%d,seed=%d", eval, seed),
				Config: cfg,
			}, runOpts)
			if err != nil {
				return err
			}
			if s := opts.Store; s != nil {
				ev, err := evaluationRecord(opts.SweepID, r)
				if err != nil {
					return err
				}
				if err := s.SaveEvaluation(ctx, ev); err != nil {
					return fmt.Errorf("persist %s: %w", r.Label, err)
				}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if opts.OnResult != nil {
		for _, r := range results {
			opts.OnResult(r)
		}
	}
	return results, nil
}
