package engine

import (
	"log/slog"

	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/traits"
)

// Stats is the aggregate snapshot produced after every step.
type Stats struct {
	Tick    uint64  `json:"tick"`
	SimTime float64 `json:"sim_time"`

	AgentCount    int `json:"agent_count"`
	PredatorCount int `json:"predator_count"`
	ResourceCount int `json:"resource_count"`

	TotalEnergy    float64 `json:"total_energy"`
	ResourceEnergy float64 `json:"resource_energy"`
	AverageEnergy  float64 `json:"average_energy"`

	AverageAge              float64 `json:"average_age"`
	AverageSpeed            float64 `json:"average_speed"`
	AverageSize             float64 `json:"average_size"`
	AverageAggression       float64 `json:"average_aggression"`
	AverageSenseRange       float64 `json:"average_sense_range"`
	AverageEnergyEfficiency float64 `json:"average_energy_efficiency"`
	AverageGeneration       float64 `json:"average_generation"`
	MaxGeneration           uint32  `json:"max_generation"`
	AverageFitness          float64 `json:"average_fitness"`

	// This step
	Births int `json:"births"`
	Deaths int `json:"deaths"`
	Kills  int `json:"kills"`

	// Since the last reset
	TotalBirths      uint64 `json:"total_births"`
	TotalDeaths      uint64 `json:"total_deaths"`
	TotalKills       uint64 `json:"total_kills"`
	StarvationDeaths uint64 `json:"starvation_deaths"`
	KilledDeaths     uint64 `json:"killed_deaths"`
	OldAgeDeaths     uint64 `json:"old_age_deaths"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("tick", s.Tick),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("agents", s.AgentCount),
		slog.Int("predators", s.PredatorCount),
		slog.Int("resources", s.ResourceCount),
		slog.Float64("avg_energy", s.AverageEnergy),
		slog.Float64("avg_generation", s.AverageGeneration),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("kills", s.Kills),
	)
}

// counters accumulates event counts across steps.
type counters struct {
	births, deaths, kills uint64
	starved, killed, old  uint64

	stepBirths, stepDeaths, stepKills int
}

func (c *counters) recordDeath(reason components.DeathReason) {
	c.deaths++
	c.stepDeaths++
	switch reason {
	case components.DeathStarvation:
		c.starved++
	case components.DeathKilled:
		c.killed++
	case components.DeathOldAge:
		c.old++
	}
}

// refreshStats reloads the working set from the store and publishes stats.
// Used outside a step, after reset or an external insertion.
func (c *core) refreshStats(s store) {
	c.agents, c.agentRefs = s.loadAgents(c.agents[:0], c.agentRefs[:0])
	c.resources, c.resRefs = s.loadResources(c.resources[:0], c.resRefs[:0])
	c.publishStats()
}

// publishStats computes the snapshot from the working set, which must match
// the store. Per-step counts carry over from the last step, so insertions
// between steps keep them.
func (c *core) publishStats() {
	c.stats = computeStats(c.agents, c.resources)

	c.stats.Tick = c.tick
	c.stats.SimTime = c.simTime
	c.stats.Births = c.totals.stepBirths
	c.stats.Deaths = c.totals.stepDeaths
	c.stats.Kills = c.totals.stepKills

	c.stats.TotalBirths = c.totals.births
	c.stats.TotalDeaths = c.totals.deaths
	c.stats.TotalKills = c.totals.kills
	c.stats.StarvationDeaths = c.totals.starved
	c.stats.KilledDeaths = c.totals.killed
	c.stats.OldAgeDeaths = c.totals.old
}

// computeStats aggregates population and resource figures. Averages are zero
// for an empty population.
func computeStats(agents []components.Agent, resources []components.Resource) Stats {
	var st Stats
	st.AgentCount = len(agents)
	st.ResourceCount = len(resources)

	for i := range resources {
		st.ResourceEnergy += resources[i].Energy
	}
	if len(agents) == 0 {
		return st
	}

	var age, speed, size, aggression, sense, efficiency, generation, fitness float64
	for i := range agents {
		a := &agents[i]
		g := &a.Genes
		if a.Predator {
			st.PredatorCount++
		}
		st.TotalEnergy += a.Energy
		age += a.Age
		speed += g[traits.Speed]
		size += g[traits.Size]
		aggression += g[traits.Aggression]
		sense += g[traits.SenseRange]
		efficiency += g[traits.EnergyEfficiency]
		generation += float64(a.Generation)
		st.MaxGeneration = max(st.MaxGeneration, a.Generation)
		fitness += traits.Fitness(g, a.Energy)
	}

	n := float64(len(agents))
	st.AverageEnergy = st.TotalEnergy / n
	st.AverageAge = age / n
	st.AverageSpeed = speed / n
	st.AverageSize = size / n
	st.AverageAggression = aggression / n
	st.AverageSenseRange = sense / n
	st.AverageEnergyEfficiency = efficiency / n
	st.AverageGeneration = generation / n
	st.AverageFitness = fitness / n
	return st
}
