package components

// String returns the display name for a State.
func (s State) String() string {
	names := StateNames()
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// StateNames returns the display names for all behavioral states.
// The order matches the State constants.
func StateNames() []string {
	return []string{"Seeking", "Hunting", "Feeding", "Fighting", "Fleeing", "Reproducing"}
}

// String returns the display name for a DeathReason.
func (d DeathReason) String() string {
	switch d {
	case DeathNone:
		return "alive"
	case DeathStarvation:
		return "starvation"
	case DeathKilled:
		return "killed"
	case DeathOldAge:
		return "old_age"
	}
	return "unknown"
}
