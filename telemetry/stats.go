package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of steps.
type WindowStats struct {
	WindowStartStep uint64  `csv:"-"`
	WindowEndStep   uint64  `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population counts at window end
	PreyCount     int `csv:"prey"`
	PredCount     int `csv:"pred"`
	ResourceCount int `csv:"resources"`

	// Events during window
	Births           int     `csv:"births"`
	Deaths           int     `csv:"deaths"`
	Kills            int     `csv:"kills"`
	StarvationDeaths int     `csv:"starvation_deaths"`
	OldAgeDeaths     int     `csv:"old_age_deaths"`
	KillShare        float64 `csv:"kill_share"` // kills / deaths

	// Energy distribution (sampled at window end)
	PreyEnergyMean float64 `csv:"prey_energy_mean"`
	PreyEnergyP10  float64 `csv:"prey_energy_p10"`
	PreyEnergyP50  float64 `csv:"prey_energy_p50"`
	PreyEnergyP90  float64 `csv:"prey_energy_p90"`

	PredEnergyMean float64 `csv:"pred_energy_mean"`
	PredEnergyP10  float64 `csv:"pred_energy_p10"`
	PredEnergyP50  float64 `csv:"pred_energy_p50"`
	PredEnergyP90  float64 `csv:"pred_energy_p90"`

	// Energy pools
	AgentEnergy    float64 `csv:"agent_energy"`
	ResourceEnergy float64 `csv:"resource_energy"`

	// Aggression distribution
	AggressionMean float64 `csv:"aggression_mean"`
	AggressionStd  float64 `csv:"aggression_std"`
	AggressionP10  float64 `csv:"aggression_p10"`
	AggressionP50  float64 `csv:"aggression_p50"`
	AggressionP90  float64 `csv:"aggression_p90"`

	// Lineage
	MeanGeneration float64 `csv:"mean_generation"`
	MaxGeneration  uint32  `csv:"max_generation"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeEnergyStats returns the mean and the 10th, 50th and 90th percentiles.
func ComputeEnergyStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sorted := slices.Sorted(slices.Values(values))
	return stat.Mean(sorted, nil), Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// ComputeTraitStats is ComputeEnergyStats plus the population standard deviation.
func ComputeTraitStats(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}
	_, p10, p50, p90 = ComputeEnergyStats(values)
	mean, std = stat.PopMeanStdDev(values, nil)
	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartStep),
		slog.Uint64("window_end", s.WindowEndStep),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("prey", s.PreyCount),
		slog.Int("pred", s.PredCount),
		slog.Int("resources", s.ResourceCount),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("kills", s.Kills),
		slog.Int("starvation_deaths", s.StarvationDeaths),
		slog.Int("old_age_deaths", s.OldAgeDeaths),
		slog.Float64("kill_share", s.KillShare),
		slog.Float64("prey_energy_mean", s.PreyEnergyMean),
		slog.Float64("prey_energy_p50", s.PreyEnergyP50),
		slog.Float64("pred_energy_mean", s.PredEnergyMean),
		slog.Float64("pred_energy_p50", s.PredEnergyP50),
		slog.Float64("agent_energy", s.AgentEnergy),
		slog.Float64("resource_energy", s.ResourceEnergy),
		slog.Float64("aggression_mean", s.AggressionMean),
		slog.Float64("aggression_std", s.AggressionStd),
		slog.Float64("mean_generation", s.MeanGeneration),
		slog.Uint64("max_generation", uint64(s.MaxGeneration)),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
