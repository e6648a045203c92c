// Package dice provides the randomness abstraction and dice expressions used by
// the tracker for initiative and death-save rolls.
package dice

import "fmt"

// Source is the randomness provider for dice rolls.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RollResult records one evaluated expression.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the kept dice plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// Natural returns the first kept die, which is the natural roll of a single d20.
// Returns 0 when no dice were kept.
func (r RollResult) Natural() int {
	if len(r.Dice) == 0 {
		return 0
	}
	return r.Dice[0]
}

// String renders the roll as "1d20+3 [14] +3 = 17".
func (r RollResult) String() string {
	return fmt.Sprintf("%s %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}
