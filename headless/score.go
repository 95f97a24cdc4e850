package headless

import "github.com/pthm-cable/evosim/config"

// Quality component weights.
const (
	qualityWeightCompletion = 0.25
	qualityWeightHealth     = 0.25
	qualityWeightStability  = 0.25
	qualityWeightDynamic    = 0.10
	qualityWeightEvolution  = 0.15

	penaltyExtinction = 0.5
	penaltyExplosion  = 0.3
	penaltyCollapse   = 0.2
)

// QualityScore rates a run in [0, 1].
//
//	0.25 * completion   share of the target virtual duration reached
//	0.25 * health       1 inside [min_agent_count, max_agent_count], 0.5 if any agents remain
//	0.25 * stability
//	0.10 * dynamic
//	0.15 * evolution    1 above one average generation, 0.66 above half
//
// minus 0.5 for extinction, 0.3 for explosion and 0.2 for resource collapse.
func QualityScore(d *Diagnostics, cfg *config.Config) float64 {
	var score float64

	if target := cfg.TargetDurationMinutes * 60; target > 0 {
		score += qualityWeightCompletion * min(1, d.SimTime/target)
	}

	switch n := d.FinalStats.AgentCount; {
	case n >= cfg.MinAgentCount && n <= cfg.MaxAgentCount && n > 0:
		score += qualityWeightHealth
	case n > 0:
		score += qualityWeightHealth * 0.5
	}

	score += qualityWeightStability * d.StabilityScore

	if d.IsDynamic {
		score += qualityWeightDynamic
	}

	switch {
	case d.AverageGenerations > 1:
		score += qualityWeightEvolution
	case d.AverageGenerations > 0.5:
		score += qualityWeightEvolution * 0.66
	}

	if d.ExtinctionOccurred {
		score -= penaltyExtinction
	}
	if d.PopulationExplosion {
		score -= penaltyExplosion
	}
	if d.ResourceCollapse {
		score -= penaltyCollapse
	}

	return clamp01(score)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
