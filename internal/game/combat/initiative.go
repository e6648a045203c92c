package combat

import "github.com/cory-johannsen/initiative/internal/game/dice"

// deathSaveDC is the d20 result at or above which a death save succeeds.
const deathSaveDC = 10

// RollInitiative rolls d20 + modifier.
//
// Precondition: src must be non-nil.
func RollInitiative(src dice.Source, modifier int) int {
	return dice.Roll(dice.D20, src).Natural() + modifier
}

// RollDeathSave rolls a d20 death saving throw for the combatant with the given
// id: a natural 20 is a critical success, a natural 1 a critical failure, and
// 10 or higher a success. It returns the outcome and the natural roll.
//
// Precondition: src must be non-nil.
func (e *Encounter) RollDeathSave(id string, src dice.Source) (SaveOutcome, int, error) {
	if _, err := e.lookup(id); err != nil {
		return SaveNone, 0, err
	}
	roll := dice.Roll(dice.D20, src).Natural()
	success := roll >= deathSaveDC
	critical := roll == 20 || roll == 1
	out, err := e.DeathSave(id, success, critical)
	return out, roll, err
}
