// Package headless runs a simulation without rendering until its target
// virtual duration or an early-termination condition, and scores the result.
package headless

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/engine"
	"github.com/pthm-cable/evosim/telemetry"
)

// bookmarkHistory is the number of telemetry windows the detector remembers.
const bookmarkHistory = 10

// Options tunes a run beyond its config.
type Options struct {
	Seed    int64 // overrides config seed when non-zero
	Workers int   // overrides config worker count when > 0

	// Output receives telemetry, perf, bookmark CSVs, the effective config and
	// diagnostics.json. Nil disables file output.
	Output *telemetry.OutputManager
	// Snapshots saves the world on every bookmark (requires Output).
	Snapshots bool
	// LogStats logs each telemetry window and bookmark via slog.
	LogStats bool
}

// runner holds the per-run state of Run.
type runner struct {
	cfg  *config.Config
	opts Options
	sim  *engine.Simulation

	collector *telemetry.Collector
	detector  *telemetry.BookmarkDetector
	agentBuf  []components.Agent

	diag *Diagnostics

	prevStarved, prevOld uint64
	sawResources         bool
	resourceFreeSteps    int
}

// Run executes one simulation to completion. Early termination and
// cancellation are reported in Diagnostics.Termination, not as errors.
// Errors are configuration or output failures.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Diagnostics, error) {
	cfg = cfg.Clone()
	if opts.Seed != 0 {
		cfg.Seed = uint64(opts.Seed)
	}
	if opts.Workers > 0 {
		cfg.Parallel.Workers = opts.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("headless: %w", err)
	}

	sim, err := engine.New(cfg, engine.Options{})
	if err != nil {
		return nil, err
	}
	defer sim.Close()

	r := &runner{
		cfg:       cfg,
		opts:      opts,
		sim:       sim,
		collector: telemetry.NewCollector(cfg.Telemetry.EventWindow),
		detector:  telemetry.NewBookmarkDetector(bookmarkHistory),
		diag: &Diagnostics{
			RunID:  uuid.NewString(),
			Engine: sim.Kind().String(),
			Seed:   cfg.Seed,
		},
	}

	if err := opts.Output.WriteConfig(cfg); err != nil {
		return nil, fmt.Errorf("headless: %w", err)
	}

	if err := r.loop(ctx); err != nil {
		return nil, err
	}

	if err := opts.Output.WriteJSON("diagnostics.json", r.diag); err != nil {
		return nil, fmt.Errorf("headless: %w", err)
	}
	return r.diag, nil
}

func (r *runner) loop(ctx context.Context) error {
	cfg := r.cfg
	dt := cfg.Derived.DT
	target := cfg.Derived.TargetSeconds

	slog.Debug("starting headless run",
		"run_id", r.diag.RunID,
		"engine", r.diag.Engine,
		"seed", cfg.Seed,
		"dt", dt,
		"target_seconds", target,
	)

	start := time.Now()
	st := r.sim.Stats()
	r.diag.Termination = TerminationCompleted

	for st.SimTime < target {
		if ctx.Err() != nil {
			r.diag.Termination = TerminationCanceled
			break
		}

		st = r.sim.Step(dt)
		r.record(st)

		if err := r.observe(st); err != nil {
			return err
		}

		if li := cfg.Telemetry.LogInterval; li > 0 && st.Tick%uint64(li) == 0 {
			elapsed := time.Since(start).Seconds()
			slog.Info("progress",
				"run_id", r.diag.RunID,
				"percent", 100*st.SimTime/target,
				"steps_per_second", float64(st.Tick)/max(elapsed, 1e-9),
				"stats", st,
			)
		}

		if t, stop := r.terminated(st); stop {
			r.diag.Termination = t
			break
		}
	}

	elapsed := time.Since(start).Seconds()
	d := r.diag
	d.DurationSeconds = elapsed
	d.TotalSteps = st.Tick
	if elapsed > 0 {
		d.StepsPerSecond = float64(st.Tick) / elapsed
	}
	d.SimTime = st.SimTime
	d.FinalStats = FinalStats{
		AgentCount:        st.AgentCount,
		PredatorCount:     st.PredatorCount,
		ResourceCount:     st.ResourceCount,
		TotalEnergy:       st.TotalEnergy,
		AverageEnergy:     st.AverageEnergy,
		AverageGeneration: st.AverageGeneration,
		MaxGeneration:     st.MaxGeneration,
		AverageFitness:    st.AverageFitness,
	}
	d.TotalReproductions = st.TotalBirths
	d.TotalDeaths = st.TotalDeaths
	d.TotalKills = st.TotalKills
	d.finalize(cfg)

	slog.Debug("headless run finished", "diagnostics", d)
	return nil
}

// record appends one step to the history buffers.
func (r *runner) record(st engine.Stats) {
	d := r.diag
	d.PopulationHistory = append(d.PopulationHistory, st.AgentCount)
	d.EnergyHistory = append(d.EnergyHistory, st.TotalEnergy)
	d.ResourceHistory = append(d.ResourceHistory, st.ResourceCount)
	d.PredatorHistory = append(d.PredatorHistory, st.PredatorCount)
	d.FitnessHistory = append(d.FitnessHistory, st.AverageFitness)
	d.GenerationHistory = append(d.GenerationHistory, st.MaxGeneration)
}

// terminated evaluates the early-stop predicates after a completed step.
func (r *runner) terminated(st engine.Stats) (Termination, bool) {
	if st.AgentCount == 0 {
		return TerminationExtinction, true
	}
	if st.AgentCount > r.cfg.Derived.ExplosionLimit {
		return TerminationExplosion, true
	}

	// Collapse only counts once resources have existed
	if st.ResourceCount > 0 {
		r.sawResources = true
		r.resourceFreeSteps = 0
	} else if r.sawResources {
		r.resourceFreeSteps++
		if r.resourceFreeSteps >= max(r.cfg.Termination.CollapseSteps, 1) {
			return TerminationCollapse, true
		}
	}
	return "", false
}

// observe feeds the telemetry collector and, at window ends, writes the
// window, checks bookmarks and saves snapshots.
func (r *runner) observe(st engine.Stats) error {
	r.collector.Record(telemetry.StepEvents{
		Births:     st.Births,
		Deaths:     st.Deaths,
		Kills:      st.Kills,
		Starvation: int(st.StarvationDeaths - r.prevStarved),
		OldAge:     int(st.OldAgeDeaths - r.prevOld),
	})
	r.prevStarved, r.prevOld = st.StarvationDeaths, st.OldAgeDeaths

	if !r.collector.ShouldFlush(st.Tick) {
		return nil
	}

	r.agentBuf = r.sim.Agents(r.agentBuf[:0])
	window := r.collector.Flush(st.Tick, st.SimTime, r.agentBuf, st.ResourceCount, st.ResourceEnergy)
	if r.opts.LogStats {
		window.LogStats()
	}

	perf := r.sim.Perf()
	if r.opts.LogStats {
		perf.LogStats()
	}

	out := r.opts.Output
	if err := out.WriteTelemetry(window); err != nil {
		return fmt.Errorf("headless: %w", err)
	}
	if err := out.WritePerf(perf, st.Tick); err != nil {
		return fmt.Errorf("headless: %w", err)
	}

	for _, bm := range r.detector.Check(window) {
		r.diag.Bookmarks = append(r.diag.Bookmarks, bm)
		if r.opts.LogStats {
			bm.LogBookmark()
		}
		if err := out.WriteBookmark(bm); err != nil {
			return fmt.Errorf("headless: %w", err)
		}
		if r.opts.Snapshots {
			path, err := out.WriteSnapshot(r.snapshot(st, &bm))
			if err != nil {
				return fmt.Errorf("headless: %w", err)
			}
			if path != "" {
				slog.Info("snapshot saved", "path", path, "tick", st.Tick)
			}
		}
	}
	return nil
}

// snapshot captures the current world, tagged with the bookmark that caused it.
func (r *runner) snapshot(st engine.Stats, bm *telemetry.Bookmark) *telemetry.Snapshot {
	s := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		Seed:        r.cfg.Seed,
		Engine:      r.diag.Engine,
		WorldWidth:  r.cfg.Width,
		WorldHeight: r.cfg.Height,
		Step:        st.Tick,
		SimTime:     st.SimTime,
		Bookmark:    bm,
	}
	r.agentBuf = r.sim.Agents(r.agentBuf[:0])
	s.Agents = make([]telemetry.AgentState, len(r.agentBuf))
	for i := range r.agentBuf {
		s.Agents[i] = telemetry.NewAgentState(&r.agentBuf[i])
	}
	resources := r.sim.Resources(nil)
	s.Resources = make([]telemetry.ResourceState, len(resources))
	for i := range resources {
		s.Resources[i] = telemetry.NewResourceState(&resources[i])
	}
	return s
}
