package combat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cory-johannsen/initiative/internal/game/condition"
)

// CombatantParams are the caller-supplied attributes of a new combatant.
type CombatantParams struct {
	Name       string
	Side       Side
	Initiative int
	// Tiebreak orders combatants with equal initiative, lowest first.
	Tiebreak int
	AC       int
	HP       int
	MaxHP    int
}

// Validate checks the parameters.
//
// Postcondition: Returns nil or an error wrapping ErrInvalidCombatant.
func (p CombatantParams) Validate() error {
	var errs []string
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name must not be empty")
	}
	if p.Side != SideAlly && p.Side != SideEnemy {
		errs = append(errs, fmt.Sprintf("unknown side %d", p.Side))
	}
	if p.MaxHP < 1 {
		errs = append(errs, fmt.Sprintf("max hp must be >= 1, got %d", p.MaxHP))
	}
	if p.HP < 0 {
		errs = append(errs, fmt.Sprintf("hp must be >= 0, got %d", p.HP))
	}
	if p.AC < 0 {
		errs = append(errs, fmt.Sprintf("ac must be >= 0, got %d", p.AC))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCombatant, strings.Join(errs, "; "))
	}
	return nil
}

// Combatant is one participant in an encounter.
//
// Invariant: 0 <= HP() <= CurrentMaxHP() <= MaxHP().
// It is not safe for concurrent use; the caller must serialise access.
type Combatant struct {
	ID   string
	Name string
	Side Side
	AC   int

	initiative int
	tiebreak   int

	hp         int
	currentMax int
	max        int

	successes int
	failures  int

	conditions *condition.Set
	newID      func() string
}

// NewCombatant creates a combatant with the given stable id. Condition IDs are
// drawn from newID; nil uses random UUIDs.
//
// Postcondition: Returns a combatant with HP clamped to MaxHP, or an error
// wrapping ErrInvalidCombatant.
func NewCombatant(id string, p CombatantParams, newID func() string) (*Combatant, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: id must not be empty", ErrInvalidCombatant)
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Combatant{
		ID:         id,
		Name:       p.Name,
		Side:       p.Side,
		AC:         p.AC,
		initiative: p.Initiative,
		tiebreak:   p.Tiebreak,
		hp:         min(p.HP, p.MaxHP),
		currentMax: p.MaxHP,
		max:        p.MaxHP,
		conditions: condition.NewSet(),
		newID:      newID,
	}, nil
}

// Initiative returns the primary (descending) turn-order key.
func (c *Combatant) Initiative() int { return c.initiative }

// Tiebreak returns the secondary (ascending) turn-order key.
func (c *Combatant) Tiebreak() int { return c.tiebreak }

// HP returns current hit points.
func (c *Combatant) HP() int { return c.hp }

// CurrentMaxHP returns the maximum after reductions.
func (c *Combatant) CurrentMaxHP() int { return c.currentMax }

// MaxHP returns the maximum ceiling, including buffs.
func (c *Combatant) MaxHP() int { return c.max }

// DeathSaves returns the success and failure counters.
func (c *Combatant) DeathSaves() (successes, failures int) { return c.successes, c.failures }

// Ref returns the condition reference for this combatant.
func (c *Combatant) Ref() condition.Ref { return condition.Ref(c.ID) }

// State derives the health state from HP and conditions.
func (c *Combatant) State() State {
	switch {
	case c.conditions.Has(condition.Slain):
		return StateSlain
	case c.hp == 0 && c.conditions.Has(condition.Dying):
		return StateDying
	case c.hp == 0 && c.conditions.Has(condition.Stable):
		return StateStable
	case c.conditions.Has(condition.Unconscious):
		return StateUnconscious
	default:
		return StateActive
	}
}

// IsSlain reports whether the combatant carries the terminal slain condition.
func (c *Combatant) IsSlain() bool { return c.conditions.Has(condition.Slain) }

// IsDisabled reports whether the combatant carries any disabling condition.
func (c *Combatant) IsDisabled() bool {
	for _, cond := range c.conditions.All() {
		if cond.Name.Disabling() {
			return true
		}
	}
	return false
}

// HasCondition reports whether a condition named n is applied.
func (c *Combatant) HasCondition(n condition.Name) bool { return c.conditions.Has(n) }

// Condition returns the applied condition with the given id.
func (c *Combatant) Condition(id string) (*condition.Condition, bool) { return c.conditions.Get(id) }

// Conditions returns the applied conditions in application order.
func (c *Combatant) Conditions() []*condition.Condition { return c.conditions.All() }

// Concentration returns the combatant's concentration condition, if any.
func (c *Combatant) Concentration() (*condition.Condition, bool) {
	return c.conditions.First(condition.Concentration)
}

// ApplyDamage subtracts amount from HP and runs the death rules.
//
// Enemies reaching 0 HP are slain. Allies are slain outright by massive damage
// (HP falling to -CurrentMaxHP or below); otherwise the first drop leaves them
// dying at 0 HP, and further damage at 0 HP counts one death-save failure, two
// when critical.
//
// Postcondition: 0 <= HP() <= CurrentMaxHP(); a slain combatant is unchanged.
func (c *Combatant) ApplyDamage(amount int, critical bool) (DamageOutcome, error) {
	if amount < 0 {
		return DamageNone, fmt.Errorf("%w: damage %d", ErrNegativeAmount, amount)
	}
	if c.IsSlain() {
		return DamageSlain, nil
	}
	if amount == 0 {
		return DamageNone, nil
	}

	wasAtZero := c.hp == 0
	remaining := c.hp - amount
	if remaining > 0 {
		c.hp = remaining
		return DamageNone, nil
	}
	c.hp = 0

	if c.Side == SideEnemy || remaining <= -c.currentMax {
		c.kill()
		return DamageSlain, nil
	}
	if wasAtZero {
		c.conditions.RemoveName(condition.Stable)
		c.failures += failureWeight(critical)
		if c.failures >= deathSaveLimit {
			c.kill()
			return DamageSlain, nil
		}
	}
	c.mark(condition.Dying)
	return DamageDying, nil
}

// Heal restores amount HP, up to CurrentMaxHP. Zero healing is a no-op. Healing
// a slain combatant does nothing unless resurrection is set, in which case slain
// is removed first.
//
// Postcondition: on any heal that lands, death saves are reset and
// unconscious, dying and stable are removed.
func (c *Combatant) Heal(amount int, resurrection bool) error {
	if amount < 0 {
		return fmt.Errorf("%w: healing %d", ErrNegativeAmount, amount)
	}
	if amount == 0 {
		return nil
	}
	if c.IsSlain() {
		if !resurrection {
			return nil
		}
		c.conditions.RemoveName(condition.Slain)
	}
	c.resetDeathSaves()
	c.strip(condition.Unconscious, condition.Dying, condition.Stable)
	c.hp = min(c.hp+amount, c.currentMax)
	return nil
}

// FailDeathSave records a failed death saving throw; a critical failure counts twice.
// A stable combatant loses stable and is dying again. It has no effect above 0 HP.
func (c *Combatant) FailDeathSave(critical bool) SaveOutcome {
	if c.hp > 0 {
		return SaveNone
	}
	if c.IsSlain() {
		return SaveSlain
	}
	c.conditions.RemoveName(condition.Stable)
	c.failures += failureWeight(critical)
	if c.failures >= deathSaveLimit {
		c.kill()
		return SaveSlain
	}
	c.mark(condition.Dying)
	return SaveNone
}

// SucceedDeathSave records a successful death saving throw. A critical success
// revives the combatant at 1 HP immediately; the third success stabilises.
// It has no effect above 0 HP.
func (c *Combatant) SucceedDeathSave(critical bool) SaveOutcome {
	if c.hp > 0 {
		return SaveNone
	}
	if c.IsSlain() {
		return SaveSlain
	}
	if critical {
		c.strip(condition.Slain, condition.Unconscious, condition.Dying, condition.Stable)
		c.hp = min(1, c.currentMax)
		c.resetDeathSaves()
		return SaveRevived
	}
	c.successes++
	if c.successes >= deathSaveLimit {
		c.conditions.RemoveName(condition.Dying)
		c.mark(condition.Stable)
		return SaveStable
	}
	return SaveNone
}

// BuffMaxHP raises MaxHP and CurrentMaxHP by amount, healing the same amount
// when heal is set.
func (c *Combatant) BuffMaxHP(amount int, heal bool) error {
	if amount <= 0 {
		return fmt.Errorf("%w: max hp buff %d", ErrNonPositiveAmount, amount)
	}
	c.max += amount
	c.currentMax += amount
	if heal {
		return c.Heal(amount, false)
	}
	return nil
}

// DebuffMaxHP lowers CurrentMaxHP by amount. A combatant whose maximum reaches
// zero is slain; otherwise amount is also dealt as damage.
//
// Postcondition: 0 <= HP() <= CurrentMaxHP().
func (c *Combatant) DebuffMaxHP(amount int) (DamageOutcome, error) {
	if amount <= 0 {
		return DamageNone, fmt.Errorf("%w: max hp debuff %d", ErrNonPositiveAmount, amount)
	}
	if c.IsSlain() {
		return DamageSlain, nil
	}
	c.currentMax -= amount
	if c.currentMax <= 0 {
		c.currentMax = 0
		c.hp = 0
		c.kill()
		return DamageSlain, nil
	}
	out, err := c.ApplyDamage(amount, false)
	c.hp = min(c.hp, c.currentMax)
	return out, err
}

// RestoreMaxHP lifts CurrentMaxHP back to MaxHP, undoing debuffs.
func (c *Combatant) RestoreMaxHP() {
	if c.IsSlain() {
		return
	}
	c.currentMax = c.max
}

// ApplyCondition applies spec to this combatant. An unset Target defaults to
// the combatant itself.
//
// Unique names already present are not duplicated: concentration asks the
// caller to replace the old one, other unique names are ignored.
//
// Postcondition: Returns the new or already-present condition, or a
// validation error from condition.Spec.Validate.
func (c *Combatant) ApplyCondition(spec condition.Spec) (ApplyOutcome, *condition.Condition, error) {
	if !spec.Target.IsSet() {
		spec.Target = c.Ref()
	}
	if err := spec.Validate(); err != nil {
		return Added, nil, err
	}
	if spec.Name.Unique() {
		if existing, ok := c.conditions.First(spec.Name); ok {
			if spec.Name == condition.Concentration {
				return ConcentrationReplaceRequested, existing, nil
			}
			return DuplicateIgnored, existing, nil
		}
	}
	cond := condition.New(c.newID(), spec)
	c.add(cond)
	if spec.Name.BreaksConcentration() {
		return AddedBreaksConcentration, cond, nil
	}
	return Added, cond, nil
}

// RemoveCondition removes the condition with the given id from this combatant
// only. Cross-combatant cascades are resolved by the Encounter.
func (c *Combatant) RemoveCondition(id string) (*condition.Condition, bool) {
	return c.conditions.Remove(id)
}

// TickConditions advances this combatant's conditions for actor's turn and
// returns the ones that expired.
func (c *Combatant) TickConditions(timing condition.Timing, actor condition.Ref) []*condition.Condition {
	return c.conditions.Tick(timing, actor)
}

// mark applies an indefinite engine-driven condition, honouring uniqueness.
func (c *Combatant) mark(n condition.Name) {
	if n.Unique() && c.conditions.Has(n) {
		return
	}
	c.add(condition.New(c.newID(), condition.Spec{
		Name:     n,
		Duration: condition.Indefinite,
		Target:   c.Ref(),
	}))
}

func (c *Combatant) add(cond *condition.Condition) {
	c.conditions.Add(cond)
	if cond.Name == condition.Slain || cond.Name == condition.Stable {
		c.resetDeathSaves()
	}
}

func (c *Combatant) kill() {
	c.strip(condition.Dying, condition.Stable, condition.Unconscious)
	c.mark(condition.Slain)
}

func (c *Combatant) strip(names ...condition.Name) {
	for _, n := range names {
		c.conditions.RemoveName(n)
	}
}

func (c *Combatant) resetDeathSaves() {
	c.successes = 0
	c.failures = 0
}

func failureWeight(critical bool) int {
	if critical {
		return 2
	}
	return 1
}
