package systems

import (
	"github.com/pthm-cable/evosim/components"
	"github.com/pthm-cable/evosim/traits"
)

// CombatPower is a's attack against b's defense.
func CombatPower(a, b *traits.GeneSet) float64 {
	attack := a[traits.AttackPower] * a[traits.Size] *
		(1 + 0.5*a[traits.Intelligence] + 0.3*a[traits.Stamina])
	return attack / (b[traits.Defense]*b[traits.Size] + 1)
}

// TransferFraction is the share of the loser's energy the winner absorbs.
func TransferFraction(winner, loser *components.Agent, r *Rules) float64 {
	if winner.Predator && !loser.Predator {
		return r.PredationTransfer
	}
	return r.SkirmishTransfer
}

// Fight resolves combat between a and b in place and reports whether a won.
// Equal power goes to the lower id. The loser is killed; the winner gains
// exactly the transfer fraction of the loser's pre-fight energy, which may
// carry it above MaxEnergy.
func Fight(a, b *components.Agent, r *Rules) (aWon bool, gain float64) {
	pa := CombatPower(&a.Genes, &b.Genes)
	pb := CombatPower(&b.Genes, &a.Genes)
	aWon = pa > pb || (pa == pb && a.ID < b.ID)

	winner, loser := a, b
	if !aWon {
		winner, loser = b, a
	}

	gain = TransferFraction(winner, loser, r) * loser.Energy
	winner.Energy += gain
	winner.Kills++
	loser.Kill(components.DeathKilled)
	return aWon, gain
}
