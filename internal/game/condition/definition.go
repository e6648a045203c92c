// Package condition implements the status-effect model for the initiative tracker:
// the closed condition catalog, timed condition instances, and the ordered
// per-combatant condition set.
package condition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCondition is returned when a name is not part of the catalog.
var ErrUnknownCondition = errors.New("unknown condition")

// Name identifies one entry of the closed condition catalog.
// The zero value is not a valid condition; it is used as "no anchor".
type Name int

const (
	None Name = iota
	Blinded
	Charmed
	Concentration
	Deafened
	Dying
	Frightened
	Grappled
	Incapacitated
	Invisible
	Paralyzed
	Petrified
	Poisoned
	Prone
	Restrained
	Slain
	Stable
	Stunned
	Unconscious

	nameCount
)

// traits is the static classification of a catalog entry.
type traits struct {
	label string
	// unique names may appear at most once per combatant.
	unique bool
	// breaksConcentration names force the holder to lose concentration.
	breaksConcentration bool
	// disabling names count towards team defeat.
	disabling bool
}

var catalog = [nameCount]traits{
	None:          {label: "none"},
	Blinded:       {label: "blinded"},
	Charmed:       {label: "charmed"},
	Concentration: {label: "concentration", unique: true},
	Deafened:      {label: "deafened"},
	Dying:         {label: "dying", unique: true, breaksConcentration: true, disabling: true},
	Frightened:    {label: "frightened"},
	Grappled:      {label: "grappled"},
	Incapacitated: {label: "incapacitated", breaksConcentration: true},
	Invisible:     {label: "invisible"},
	Paralyzed:     {label: "paralyzed", breaksConcentration: true},
	Petrified:     {label: "petrified", breaksConcentration: true},
	Poisoned:      {label: "poisoned"},
	Prone:         {label: "prone"},
	Restrained:    {label: "restrained"},
	Slain:         {label: "slain", unique: true, breaksConcentration: true, disabling: true},
	Stable:        {label: "stable", unique: true, breaksConcentration: true, disabling: true},
	Stunned:       {label: "stunned", breaksConcentration: true},
	Unconscious:   {label: "unconscious", unique: true, breaksConcentration: true, disabling: true},
}

// Valid reports whether n is a catalog entry.
func (n Name) Valid() bool { return n > None && n < nameCount }

// String returns the lower-case catalog label.
func (n Name) String() string {
	if n < None || n >= nameCount {
		return fmt.Sprintf("condition(%d)", int(n))
	}
	return catalog[n].label
}

// Unique reports whether n may appear at most once per combatant.
func (n Name) Unique() bool { return n.Valid() && catalog[n].unique }

// BreaksConcentration reports whether gaining n ends the holder's concentration.
func (n Name) BreaksConcentration() bool { return n.Valid() && catalog[n].breaksConcentration }

// Disabling reports whether n takes its holder out of the fight.
func (n Name) Disabling() bool { return n.Valid() && catalog[n].disabling }

// Parse maps a case-insensitive label to its Name.
//
// Postcondition: Returns a valid Name, or an error wrapping ErrUnknownCondition.
func Parse(label string) (Name, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	for n := Blinded; n < nameCount; n++ {
		if catalog[n].label == key {
			return n, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownCondition, label)
}

// All returns every catalog entry in declaration order.
func All() []Name {
	out := make([]Name, 0, int(nameCount)-1)
	for n := Blinded; n < nameCount; n++ {
		out = append(out, n)
	}
	return out
}
