package headless

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/evosim/config"
	"github.com/pthm-cable/evosim/telemetry"
)

// Termination is the reason a run stopped.
type Termination string

const (
	TerminationCompleted  Termination = "completed"
	TerminationExtinction Termination = "extinction"
	TerminationExplosion  Termination = "explosion"
	TerminationCollapse   Termination = "collapse"
	TerminationCanceled   Termination = "canceled"
)

// FinalStats is the world summary at the end of a run.
type FinalStats struct {
	AgentCount        int     `json:"agent_count"`
	PredatorCount     int     `json:"predator_count"`
	ResourceCount     int     `json:"resource_count"`
	TotalEnergy       float64 `json:"total_energy"`
	AverageEnergy     float64 `json:"average_energy"`
	AverageGeneration float64 `json:"average_generation"`
	MaxGeneration     uint32  `json:"max_generation"`
	AverageFitness    float64 `json:"average_fitness"`
}

// Diagnostics describes one finished headless run.
type Diagnostics struct {
	RunID  string `json:"run_id"`
	Engine string `json:"engine"`
	Seed   uint64 `json:"seed"`

	DurationSeconds float64 `json:"duration_seconds"`
	StepsPerSecond  float64 `json:"steps_per_second"`
	TotalSteps      uint64  `json:"total_steps"`
	SimTime         float64 `json:"sim_time"`

	FinalStats FinalStats `json:"final_stats"`

	StabilityScore float64 `json:"stability_score"`
	QualityScore   float64 `json:"quality_score"`
	IsStable       bool    `json:"is_stable"`
	IsDynamic      bool    `json:"is_dynamic"`

	Termination         Termination `json:"termination"`
	ExtinctionOccurred  bool        `json:"extinction_occurred"`
	PopulationExplosion bool        `json:"population_explosion"`
	ResourceCollapse    bool        `json:"resource_collapse"`

	AverageGenerations float64 `json:"average_generations"`
	TotalReproductions uint64  `json:"total_reproductions"`
	TotalDeaths        uint64  `json:"total_deaths"`
	TotalKills         uint64  `json:"total_kills"`

	// One sample per step
	PopulationHistory []int     `json:"population_history"`
	EnergyHistory     []float64 `json:"energy_history"`
	ResourceHistory   []int     `json:"resource_count_history"`
	PredatorHistory   []int     `json:"predator_history"`
	FitnessHistory    []float64 `json:"fitness_history"`
	GenerationHistory []uint32  `json:"generation_history"`

	Bookmarks []telemetry.Bookmark `json:"bookmarks,omitempty"`
}

// LogValue implements slog.LogValuer. Histories are left out.
func (d *Diagnostics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", d.RunID),
		slog.String("engine", d.Engine),
		slog.String("termination", string(d.Termination)),
		slog.Uint64("total_steps", d.TotalSteps),
		slog.Float64("sim_time", d.SimTime),
		slog.Float64("steps_per_second", d.StepsPerSecond),
		slog.Int("final_agents", d.FinalStats.AgentCount),
		slog.Int("final_resources", d.FinalStats.ResourceCount),
		slog.Float64("stability", d.StabilityScore),
		slog.Float64("quality", d.QualityScore),
		slog.Bool("stable", d.IsStable),
		slog.Bool("dynamic", d.IsDynamic),
	)
}

// StabilityScore maps the coefficient of variation of the trailing window of
// population samples into (0, 1]: 1/(1+cv). Fewer than minHistory samples or
// a zero mean score 0.
func StabilityScore(population []int, window, minHistory int) float64 {
	if window > 0 && len(population) > window {
		population = population[len(population)-window:]
	}
	if len(population) < max(minHistory, 1) {
		return 0
	}
	xs := toFloats(population)
	mean, std := stat.PopMeanStdDev(xs, nil)
	if mean == 0 {
		return 0
	}
	return 1 / (1 + std/mean)
}

// IsDynamic reports whether the population range over the whole run exceeds
// threshold times its mean.
func IsDynamic(population []int, minHistory int, threshold float64) bool {
	if len(population) < max(minHistory, 1) {
		return false
	}
	lo, hi := slices.Min(population), slices.Max(population)
	mean := stat.Mean(toFloats(population), nil)
	return float64(hi-lo) > threshold*mean
}

// IsStable reports whether a stability score is within threshold of perfect.
func IsStable(score, threshold float64) bool {
	return score > 0 && score >= 1-threshold
}

// finalize derives the summary flags and scores from the recorded history.
func (d *Diagnostics) finalize(cfg *config.Config) {
	d.ExtinctionOccurred = d.Termination == TerminationExtinction || d.FinalStats.AgentCount == 0
	d.PopulationExplosion = d.Termination == TerminationExplosion
	d.ResourceCollapse = d.Termination == TerminationCollapse
	d.AverageGenerations = d.FinalStats.AverageGeneration

	d.StabilityScore = StabilityScore(d.PopulationHistory, cfg.Scoring.StabilityWindow, cfg.Scoring.MinHistory)
	d.IsStable = !d.ExtinctionOccurred && IsStable(d.StabilityScore, cfg.StabilityThreshold)
	d.IsDynamic = IsDynamic(d.PopulationHistory, cfg.Scoring.MinHistory, cfg.Scoring.DynamismThreshold)
	d.QualityScore = QualityScore(d, cfg)
}

func toFloats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
