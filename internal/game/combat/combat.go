// Package combat implements the encounter engine: the combatant health and
// death-save state machine, and the initiative-ordered turn scheduler with
// cross-combatant condition cascades.
package combat

import "errors"

var (
	// ErrNegativeAmount is returned for negative damage or healing.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrNonPositiveAmount is returned for max-HP buffs and debuffs of zero or less.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrInvalidCombatant is returned when combatant parameters are malformed.
	ErrInvalidCombatant = errors.New("invalid combatant")
	// ErrUnknownCombatant is returned when a handle does not name a roster member.
	ErrUnknownCombatant = errors.New("unknown combatant")
	// ErrTooFewCombatants is returned by Start when the roster is too small.
	ErrTooFewCombatants = errors.New("too few combatants to start combat")
)

// Side determines which team a combatant fights for, and with it their death rules.
type Side int

const (
	SideAlly Side = iota
	SideEnemy
)

// String returns "ally" or "enemy".
func (s Side) String() string {
	if s == SideEnemy {
		return "enemy"
	}
	return "ally"
}

// State is the health state derived from HP and condition flags.
type State int

const (
	StateActive State = iota
	StateDying
	StateStable
	StateUnconscious
	StateSlain
)

// String returns a lower-case state label.
func (s State) String() string {
	switch s {
	case StateDying:
		return "dying"
	case StateStable:
		return "stable"
	case StateUnconscious:
		return "unconscious"
	case StateSlain:
		return "slain"
	default:
		return "active"
	}
}

// DamageOutcome is the state change caused by damage.
type DamageOutcome int

const (
	DamageNone DamageOutcome = iota
	DamageDying
	DamageSlain
)

// String returns "none", "dying" or "slain".
func (o DamageOutcome) String() string {
	switch o {
	case DamageDying:
		return "dying"
	case DamageSlain:
		return "slain"
	default:
		return "none"
	}
}

// SaveOutcome is the state change caused by a death saving throw.
type SaveOutcome int

const (
	SaveNone SaveOutcome = iota
	SaveStable
	SaveSlain
	// SaveRevived follows a critical success: the combatant is back at 1 HP.
	SaveRevived
)

// String returns "none", "stable", "slain" or "revived".
func (o SaveOutcome) String() string {
	switch o {
	case SaveStable:
		return "stable"
	case SaveSlain:
		return "slain"
	case SaveRevived:
		return "revived"
	default:
		return "none"
	}
}

// ApplyOutcome describes what happened to a condition application request.
type ApplyOutcome int

const (
	Added ApplyOutcome = iota
	// AddedBreaksConcentration means the condition was added and ends the
	// holder's concentration; the caller resolves the loss.
	AddedBreaksConcentration
	DuplicateIgnored
	// ConcentrationReplaceRequested means the holder already concentrates; the
	// caller must remove the old concentration before applying a new one.
	ConcentrationReplaceRequested
)

// String returns the outcome label.
func (o ApplyOutcome) String() string {
	switch o {
	case AddedBreaksConcentration:
		return "added_breaks_concentration"
	case DuplicateIgnored:
		return "duplicate_ignored"
	case ConcentrationReplaceRequested:
		return "concentration_replace_requested"
	default:
		return "added"
	}
}

// deathSaveLimit is the number of successes or failures that resolves a death save arc.
const deathSaveLimit = 3
