package condition

import (
	"errors"
	"fmt"
	"strings"
)

// Indefinite is the Duration of a condition that never ticks.
const Indefinite = -1

var (
	// ErrInvalidDuration is returned for durations below Indefinite.
	ErrInvalidDuration = errors.New("invalid condition duration")
	// ErrInvalidTiming is returned when tick timing and ownership do not fit together.
	ErrInvalidTiming = errors.New("invalid condition timing")
)

// Timing is the point in a turn at which a condition's duration decrements.
type Timing int

const (
	TimingNone Timing = iota
	TimingStart
	TimingEnd
)

// String returns the timing label used in scenario files.
func (t Timing) String() string {
	switch t {
	case TimingStart:
		return "start"
	case TimingEnd:
		return "end"
	default:
		return "none"
	}
}

// ParseTiming maps "", "start" or "end" to a Timing.
func ParseTiming(s string) (Timing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TimingNone, nil
	case "start":
		return TimingStart, nil
	case "end":
		return TimingEnd, nil
	default:
		return TimingNone, fmt.Errorf("%w: unknown timing %q", ErrInvalidTiming, s)
	}
}

// Owner selects whose turn makes a condition tick.
type Owner int

const (
	// OwnerAny ticks whenever the timing matches, on anyone's turn.
	OwnerAny Owner = iota
	OwnerSource
	OwnerTarget
)

// String returns the owner label used in scenario files.
func (o Owner) String() string {
	switch o {
	case OwnerSource:
		return "source"
	case OwnerTarget:
		return "target"
	default:
		return "any"
	}
}

// ParseOwner maps "", "any", "source" or "target" to an Owner.
func ParseOwner(s string) (Owner, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return OwnerAny, nil
	case "source":
		return OwnerSource, nil
	case "target":
		return OwnerTarget, nil
	default:
		return OwnerAny, fmt.Errorf("%w: unknown tick owner %q", ErrInvalidTiming, s)
	}
}

// Ref references a combatant by ID. The zero value references nobody.
type Ref string

// NoRef is the empty combatant reference.
const NoRef Ref = ""

// IsSet reports whether r references a combatant.
func (r Ref) IsSet() bool { return r != NoRef }

// Spec describes a condition to apply.
type Spec struct {
	Name Name
	// Duration is the number of ticks before expiry; Indefinite never expires.
	// A duration of 0 expires on the first matching tick.
	Duration int
	Timing   Timing
	Owner    Owner
	Source   Ref
	Target   Ref
	// ExpiresWith anchors the condition to Source: when Source loses a condition
	// with this name, this condition is removed as well. None disables the link.
	ExpiresWith Name
}

// Validate checks the spec without reference to any combatant.
//
// Postcondition: Returns nil, or an error wrapping ErrUnknownCondition,
// ErrInvalidDuration or ErrInvalidTiming.
func (s Spec) Validate() error {
	if !s.Name.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCondition, s.Name)
	}
	if s.ExpiresWith != None && !s.ExpiresWith.Valid() {
		return fmt.Errorf("%w: expiry anchor %s", ErrUnknownCondition, s.ExpiresWith)
	}
	if s.Duration < Indefinite {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, s.Duration)
	}
	if s.Duration != Indefinite && s.Timing == TimingNone {
		return fmt.Errorf("%w: %s lasts %d rounds but has no tick timing", ErrInvalidTiming, s.Name, s.Duration)
	}
	if s.Owner == OwnerSource && !s.Source.IsSet() {
		return fmt.Errorf("%w: %s ticks on its source's turn but has no source", ErrInvalidTiming, s.Name)
	}
	if s.Owner == OwnerTarget && !s.Target.IsSet() {
		return fmt.Errorf("%w: %s ticks on its target's turn but has no target", ErrInvalidTiming, s.Name)
	}
	if s.ExpiresWith != None && !s.Source.IsSet() {
		return fmt.Errorf("%w: %s expires with %s but has no source", ErrInvalidTiming, s.Name, s.ExpiresWith)
	}
	return nil
}

// Condition is one applied status effect. Its identity never changes; only the
// remaining duration does.
type Condition struct {
	ID          string
	Name        Name
	Duration    int
	Timing      Timing
	Owner       Owner
	Source      Ref
	Target      Ref
	ExpiresWith Name

	expired bool
}

// New builds a Condition with the given id from spec.
//
// Precondition: spec.Validate() == nil; id must be non-empty.
func New(id string, spec Spec) *Condition {
	return &Condition{
		ID:          id,
		Name:        spec.Name,
		Duration:    spec.Duration,
		Timing:      spec.Timing,
		Owner:       spec.Owner,
		Source:      spec.Source,
		Target:      spec.Target,
		ExpiresWith: spec.ExpiresWith,
	}
}

// Indefinite reports whether the condition never ticks.
func (c *Condition) Indefinite() bool { return c.Duration == Indefinite }

// Expired reports whether a tick has already driven the duration to zero.
func (c *Condition) Expired() bool { return c.expired }

// ShouldTick reports whether the condition's duration decrements at timing
// during actor's turn.
//
// Postcondition: Returns false for indefinite conditions or mismatched timing.
func (c *Condition) ShouldTick(timing Timing, actor Ref) bool {
	if c.Indefinite() || c.Timing == TimingNone || c.Timing != timing {
		return false
	}
	switch c.Owner {
	case OwnerSource:
		return actor.IsSet() && actor == c.Source
	case OwnerTarget:
		return actor.IsSet() && actor == c.Target
	default:
		return true
	}
}

// Tick decrements the remaining duration, never below zero.
//
// Postcondition: Returns true exactly once, on the call that leaves the
// duration at zero; indefinite conditions always return false.
func (c *Condition) Tick() bool {
	if c.Indefinite() {
		return false
	}
	if c.Duration > 0 {
		c.Duration--
	}
	if c.Duration == 0 && !c.expired {
		c.expired = true
		return true
	}
	return false
}
