// Package harness evaluates candidate configurations with the headless
// runner, ranks them by quality and persists the results.
package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/headless"
	"github.com/pthm-cable/evosim/store"
)

// Pass criteria.
const (
	minAgentRatio   = 0.3
	maxAgentRatio   = 3.0
	minCompletion   = 0.8
	highScoreCutoff = 0.8
)

// Candidate is one configuration to evaluate.
type Candidate struct {
	Label  string
	Config *config.Config
}

// TestResult is the outcome of evaluating one candidate.
type TestResult struct {
	Label              string  `csv:"label"`
	RunID              string  `csv:"run_id"`
	InitialAgents      int     `csv:"initial_agents"`
	InitialResources   int     `csv:"initial_resources"`
	ResourceSpawnRate  float64 `csv:"resource_spawn_rate"`
	StabilityThreshold float64 `csv:"stability_threshold"`

	Score          float64 `csv:"score"`
	Passed         bool    `csv:"passed"`
	Termination    string  `csv:"termination"`
	TotalSteps     uint64  `csv:"total_steps"`
	SimTime        float64 `csv:"sim_time"`
	FinalAgents    int     `csv:"final_agents"`
	FinalResources int     `csv:"final_resources"`
	StabilityScore float64 `csv:"stability_score"`
	IsStable       bool    `csv:"is_stable"`
	IsDynamic      bool    `csv:"is_dynamic"`
	StepsPerSecond float64 `csv:"steps_per_second"`
	Notes          string  `csv:"notes"`

	Config      *config.Config        `csv:"-"`
	Diagnostics *headless.Diagnostics `csv:"-"`
}

// Evaluate runs one candidate to completion and judges it.
// The result's Config carries the seed and worker overrides from opts.
func Evaluate(ctx context.Context, c Candidate, opts headless.Options) (TestResult, error) {
	cfg := c.Config.Clone()
	if opts.Seed != 0 {
		cfg.Seed = uint64(opts.Seed)
	}
	if opts.Workers > 0 {
		cfg.Parallel.Workers = opts.Workers
	}
	c.Config = cfg
	d, err := headless.Run(ctx, cfg, opts)
	if err != nil {
		return TestResult{}, fmt.Errorf("evaluate %s: %w", c.Label, err)
	}
	return newTestResult(c, d), nil
}

func newTestResult(c Candidate, d *headless.Diagnostics) TestResult {
	cfg := c.Config
	return TestResult{
		Label:              c.Label,
		RunID:              d.RunID,
		InitialAgents:      cfg.InitialAgents,
		InitialResources:   cfg.InitialResources,
		ResourceSpawnRate:  cfg.ResourceSpawnRate,
		StabilityThreshold: cfg.StabilityThreshold,
		Score:              d.QualityScore,
		Passed:             Passed(d, cfg),
		Termination:        string(d.Termination),
		TotalSteps:         d.TotalSteps,
		SimTime:            d.SimTime,
		FinalAgents:        d.FinalStats.AgentCount,
		FinalResources:     d.FinalStats.ResourceCount,
		StabilityScore:     d.StabilityScore,
		IsStable:           d.IsStable,
		IsDynamic:          d.IsDynamic,
		StepsPerSecond:     d.StepsPerSecond,
		Notes:              Notes(d, cfg),
		Config:             cfg,
		Diagnostics:        d,
	}
}

// agentRatio is final over initial population, 0 without founders.
func agentRatio(d *headless.Diagnostics, cfg *config.Config) float64 {
	if cfg.InitialAgents == 0 {
		return 0
	}
	return float64(d.FinalStats.AgentCount) / float64(cfg.InitialAgents)
}

// Passed reports whether a run avoided extinction and explosion, kept its
// population within [0.3, 3] times the initial count and reached 80% of the
// target duration.
func Passed(d *headless.Diagnostics, cfg *config.Config) bool {
	ratio := agentRatio(d, cfg)
	completion := d.SimTime / (cfg.TargetDurationMinutes * 60)
	return !d.ExtinctionOccurred &&
		!d.PopulationExplosion &&
		ratio >= minAgentRatio && ratio <= maxAgentRatio &&
		completion >= minCompletion
}

// Notes summarizes notable outcomes in a short human-readable string.
func Notes(d *headless.Diagnostics, cfg *config.Config) string {
	var notes []string
	if d.ExtinctionOccurred {
		notes = append(notes, "Extinction occurred")
	}
	if d.PopulationExplosion {
		notes = append(notes, "Population explosion")
	}
	if d.ResourceCollapse {
		notes = append(notes, "Resource collapse")
	}
	if d.IsStable {
		notes = append(notes, "Stable population")
	}
	if d.IsDynamic {
		notes = append(notes, "Dynamic population")
	}
	switch ratio := agentRatio(d, cfg); {
	case cfg.InitialAgents > 0 && ratio < 0.5:
		notes = append(notes, "Population declined significantly")
	case ratio > 2:
		notes = append(notes, "Population grew significantly")
	}
	if d.AverageGenerations > 2 {
		notes = append(notes, "Good evolutionary progress")
	}
	if len(notes) == 0 {
		return "Balanced simulation"
	}
	return strings.Join(notes, "; ")
}

// evaluationRecord converts a result for persistence.
func evaluationRecord(sweepID string, r TestResult) (store.Evaluation, error) {
	cfgYAML, err := yaml.Marshal(r.Config)
	if err != nil {
		return store.Evaluation{}, fmt.Errorf("marshal config: %w", err)
	}
	diag, err := json.Marshal(r.Diagnostics)
	if err != nil {
		return store.Evaluation{}, fmt.Errorf("marshal diagnostics: %w", err)
	}
	return store.Evaluation{
		RunID:       r.RunID,
		SweepID:     sweepID,
		Label:       r.Label,
		CreatedAt:   time.Now(),
		ConfigYAML:  string(cfgYAML),
		Diagnostics: diag,
		Score:       r.Score,
		Passed:      r.Passed,
		Notes:       r.Notes,
	}, nil
}

// resultFromRecord rebuilds a result from a stored evaluation.
func resultFromRecord(ev store.Evaluation) (TestResult, error) {
	cfg := &config.Config{}
	if err := yaml.Unmarshal([]byte(ev.ConfigYAML), cfg); err != nil {
		return TestResult{}, fmt.Errorf("decode config of %s: %w", ev.RunID, err)
	}
	if err := cfg.Validate(); err != nil {
		return TestResult{}, fmt.Errorf("stored config of %s: %w", ev.RunID, err)
	}
	d := &headless.Diagnostics{}
	if err := json.Unmarshal(ev.Diagnostics, d); err != nil {
		return TestResult{}, fmt.Errorf("decode diagnostics of %s: %w", ev.RunID, err)
	}
	r := newTestResult(Candidate{Label: ev.Label, Config: cfg}, d)
	r.Score, r.Passed, r.Notes = ev.Score, ev.Passed, ev.Notes
	return r, nil
}
