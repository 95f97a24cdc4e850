package telemetry

import (
	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/traits"
)

// Collector accumulates per-step events within windows and produces WindowStats.
type Collector struct {
	windowSteps     uint64
	windowStartStep uint64

	// Event counters for current window
	births     int
	deaths     int
	kills      int
	starvation int
	oldAge     int

	// Reused between flushes
	preyEnergies []float64
	predEnergies []float64
	aggression   []float64
}

// NewCollector creates a collector that flushes every windowSteps steps.
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{windowSteps: uint64(windowSteps)}
}

// StepEvents are the per-step counts the engine reports.
type StepEvents struct {
	Births, Deaths, Kills int
	Starvation, OldAge    int
}

// Record adds one step's events to the current window.
func (c *Collector) Record(ev StepEvents) {
	c.births += ev.Births
	c.deaths += ev.Deaths
	c.kills += ev.Kills
	c.starvation += ev.Starvation
	c.oldAge += ev.OldAge
}

// ShouldFlush returns true if enough steps have passed to flush the window.
func (c *Collector) ShouldFlush(step uint64) bool {
	return step-c.windowStartStep >= c.windowSteps
}

// Flush produces a WindowStats from the population at the window end and
// resets counters for the next window.
func (c *Collector) Flush(step uint64, simTime float64, agents []components.Agent, resourceCount int, resourceEnergy float64) WindowStats {
	c.preyEnergies = c.preyEnergies[:0]
	c.predEnergies = c.predEnergies[:0]
	c.aggression = c.aggression[:0]

	stats := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   step,
		SimTimeSec:      simTime,
		ResourceCount:   resourceCount,
		ResourceEnergy:  resourceEnergy,

		Births:           c.births,
		Deaths:           c.deaths,
		Kills:            c.kills,
		StarvationDeaths: c.starvation,
		OldAgeDeaths:     c.oldAge,
	}
	if c.deaths > 0 {
		stats.KillShare = float64(c.kills) / float64(c.deaths)
	}

	var generations float64
	for i := range agents {
		a := &agents[i]
		if a.Predator {
			stats.PredCount++
			c.predEnergies = append(c.predEnergies, a.Energy)
		} else {
			stats.PreyCount++
			c.preyEnergies = append(c.preyEnergies, a.Energy)
		}
		c.aggression = append(c.aggression, a.Genes[traits.Aggression])
		stats.AgentEnergy += a.Energy
		generations += float64(a.Generation)
		stats.MaxGeneration = max(stats.MaxGeneration, a.Generation)
	}
	if len(agents) > 0 {
		stats.MeanGeneration = generations / float64(len(agents))
	}

	stats.PreyEnergyMean, stats.PreyEnergyP10, stats.PreyEnergyP50, stats.PreyEnergyP90 = ComputeEnergyStats(c.preyEnergies)
	stats.PredEnergyMean, stats.PredEnergyP10, stats.PredEnergyP50, stats.PredEnergyP90 = ComputeEnergyStats(c.predEnergies)
	stats.AggressionMean, stats.AggressionStd, stats.AggressionP10, stats.AggressionP50, stats.AggressionP90 = ComputeTraitStats(c.aggression)

	// Reset for next window
	c.windowStartStep = step
	c.births = 0
	c.deaths = 0
	c.kills = 0
	c.starvation = 0
	c.oldAge = 0

	return stats
}
