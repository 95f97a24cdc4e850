package systems

import (
	"github.com/pthm-cable/evosim/config"
)

// Rules is the flattened, read-only parameter set used by every system.
// Built once per engine so hot paths do not chase config pointers.
type Rules struct {
	Width, Height float64
	MoveScale     float64
	ContactRadius float64

	InitialEnergy     float64
	MaxEnergy         float64
	MaxAge            float64
	BaseCost          float64
	PredatorThreshold float64
	WanderTurn        float64

	CombatThreshold   float64
	PredationTransfer float64
	SkirmishTransfer  float64

	MaturityAge         float64
	Cooldown            float64
	MateRange           float64
	CostFraction        float64
	OffspringEfficiency float64
	SpawnOffset         float64

	ConsumeAmount         float64
	AvailabilityThreshold float64
	SpawnFadeRate         float64
	DepleteFadeRate       float64
	Resource              config.ResourceConfig
}

// NewRules extracts the rule set from a validated config.
func NewRules(cfg *config.Config) Rules {
	return Rules{
		Width:         cfg.Width,
		Height:        cfg.Height,
		MoveScale:     cfg.Physics.MoveScale,
		ContactRadius: cfg.Physics.ContactRadius,

		InitialEnergy:     cfg.Agent.InitialEnergy,
		MaxEnergy:         cfg.Agent.MaxEnergy,
		MaxAge:            cfg.Agent.MaxAge,
		BaseCost:          cfg.Agent.BaseCost,
		PredatorThreshold: cfg.Agent.PredatorThreshold,
		WanderTurn:        cfg.Agent.WanderTurn,

		CombatThreshold:   cfg.Combat.Threshold,
		PredationTransfer: cfg.Combat.PredationTransfer,
		SkirmishTransfer:  cfg.Combat.SkirmishTransfer,

		MaturityAge:         cfg.Reproduction.MaturityAge,
		Cooldown:            cfg.Reproduction.Cooldown,
		MateRange:           cfg.Reproduction.MateRange,
		CostFraction:        cfg.Reproduction.CostFraction,
		OffspringEfficiency: cfg.Reproduction.OffspringEfficiency,
		SpawnOffset:         cfg.Reproduction.SpawnOffset,

		ConsumeAmount:         cfg.Resource.ConsumeAmount,
		AvailabilityThreshold: cfg.Resource.AvailabilityThreshold,
		SpawnFadeRate:         cfg.Resource.SpawnFadeRate,
		DepleteFadeRate:       cfg.Resource.DepleteFadeRate,
		Resource:              cfg.Resource,
	}
}
