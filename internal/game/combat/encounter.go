package combat

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/initiative/internal/game/condition"
)

// Defeat reports which sides can no longer fight. Both may be true at once.
type Defeat struct {
	AlliesDisabled  bool
	EnemiesDisabled bool
}

// Removal is the result of a condition removal request.
type Removal struct {
	// Removed is false when the requested condition did not exist.
	Removed bool
	// Cascaded lists the IDs of dependent conditions removed with it.
	Cascaded []string
}

// TurnResult describes the combatant whose turn has just begun.
type TurnResult struct {
	Actor *Combatant
	Round int
	// Expired lists condition IDs whose duration ran out during the change of turn.
	Expired []string
	// Cascaded lists condition IDs removed because an anchor expired.
	Cascaded []string
	Defeat   Defeat
}

// Option configures an Encounter.
type Option func(*Encounter)

// WithLogger sets the logger used for state transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Encounter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIDSource sets the generator for combatant and condition IDs.
func WithIDSource(newID func() string) Option {
	return func(e *Encounter) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// WithMinCombatants sets the roster size Start requires.
func WithMinCombatants(n int) Option {
	return func(e *Encounter) { e.minCombatants = n }
}

// Encounter owns the roster, turn order, round counter and cascade rules of one fight.
//
// Invariant: once AdvanceTurn returns, Current() is eligible to act in Round().
// It is not safe for concurrent use; the caller must serialise access.
type Encounter struct {
	combatants   []*Combatant
	byID         map[string]*Combatant
	eligibleFrom map[string]int

	current int
	round   int
	started bool

	minCombatants int
	newID         func() string
	logger        *zap.Logger
}

// NewEncounter creates an empty encounter at round 1.
//
// Postcondition: Returns a non-nil Encounter ready for AddCombatant.
func NewEncounter(opts ...Option) *Encounter {
	e := &Encounter{
		byID:          make(map[string]*Combatant),
		eligibleFrom:  make(map[string]int),
		round:         1,
		minCombatants: 1,
		newID:         uuid.NewString,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddCombatant adds a combatant and re-sorts the roster. Names need not be unique.
//
// Before combat starts every combatant acts from the current round. A
// combatant joining mid-combat acts this round when it sorts after the current
// actor, otherwise from the next round.
//
// Postcondition: the current actor is unchanged.
func (e *Encounter) AddCombatant(p CombatantParams) (*Combatant, error) {
	c, err := NewCombatant(e.newID(), p, e.newID)
	if err != nil {
		return nil, err
	}
	actor := e.Current()

	e.combatants = append(e.combatants, c)
	e.byID[c.ID] = c
	e.sort(actor)

	eligible := e.round
	if e.started && actor != nil && e.indexOf(c.ID) < e.current {
		eligible = e.round + 1
	}
	e.eligibleFrom[c.ID] = eligible

	e.logger.Debug("combatant added",
		zap.String("id", c.ID),
		zap.String("name", c.Name),
		zap.Stringer("side", c.Side),
		zap.Int("initiative", c.initiative),
		zap.Int("eligible_from", eligible),
	)
	return c, nil
}

// SetTiebreak assigns a tiebreak priority and re-sorts, keeping the current actor.
func (e *Encounter) SetTiebreak(id string, priority int) error {
	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	actor := e.Current()
	c.tiebreak = priority
	e.sort(actor)
	return nil
}

// sort orders the roster by initiative descending, then tiebreak ascending,
// preserving insertion order for full ties, and re-points current at actor.
func (e *Encounter) sort(actor *Combatant) {
	sort.SliceStable(e.combatants, func(i, j int) bool {
		a, b := e.combatants[i], e.combatants[j]
		if a.initiative != b.initiative {
			return a.initiative > b.initiative
		}
		return a.tiebreak < b.tiebreak
	})
	if actor != nil {
		e.current = e.indexOf(actor.ID)
	}
}

func (e *Encounter) indexOf(id string) int {
	for i, c := range e.combatants {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Start begins combat with the first combatant in initiative order.
//
// Postcondition: Returns ErrTooFewCombatants when the roster is below the
// configured minimum; otherwise the first actor's start-of-turn conditions tick.
func (e *Encounter) Start() (*TurnResult, error) {
	if len(e.combatants) == 0 || len(e.combatants) < e.minCombatants {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewCombatants, len(e.combatants), max(e.minCombatants, 1))
	}
	if e.started {
		return &TurnResult{Actor: e.Current(), Round: e.round, Defeat: e.CheckTeamDefeat()}, nil
	}
	return e.begin(), nil
}

func (e *Encounter) begin() *TurnResult {
	e.started = true
	e.current = 0
	res := &TurnResult{Round: e.round}
	actor := e.combatants[0]
	e.tick(condition.TimingStart, actor, res)
	res.Actor = actor
	res.Defeat = e.CheckTeamDefeat()
	e.logger.Debug("combat started",
		zap.String("actor", actor.Name),
		zap.Int("round", e.round),
	)
	return res
}

// Started reports whether the first turn has begun.
func (e *Encounter) Started() bool { return e.started }

// AdvanceTurn ends the current turn and begins the next eligible one.
//
// Returns nil on an empty roster. An encounter that has not started begins at
// its first combatant. A single combatant keeps the turn without ticking.
//
// Postcondition: Round() increments once per pass over the roster; the new
// actor satisfies EligibleFrom(actor.ID) <= Round().
func (e *Encounter) AdvanceTurn() *TurnResult {
	n := len(e.combatants)
	if n == 0 {
		return nil
	}
	if !e.started {
		return e.begin()
	}
	if n == 1 {
		return &TurnResult{Actor: e.combatants[0], Round: e.round, Defeat: e.CheckTeamDefeat()}
	}

	res := &TurnResult{}
	e.tick(condition.TimingEnd, e.combatants[e.current], res)

	idx := e.current
	for steps := 0; steps < 2*n; steps++ {
		idx++
		if idx >= n {
			idx = 0
			e.round++
		}
		if e.eligibleFrom[e.combatants[idx].ID] <= e.round {
			break
		}
	}
	e.current = idx

	actor := e.combatants[idx]
	e.tick(condition.TimingStart, actor, res)
	res.Actor = actor
	res.Round = e.round
	res.Defeat = e.CheckTeamDefeat()

	e.logger.Debug("turn advanced",
		zap.String("actor", actor.Name),
		zap.Int("round", e.round),
		zap.Strings("expired", res.Expired),
		zap.Strings("cascaded", res.Cascaded),
	)
	return res
}

// tick advances every combatant's conditions for actor's turn, removing
// expired conditions through the cascade sweep.
func (e *Encounter) tick(timing condition.Timing, actor *Combatant, res *TurnResult) {
	for _, holder := range e.Combatants() {
		for _, cond := range holder.TickConditions(timing, actor.Ref()) {
			res.Expired = append(res.Expired, cond.ID)
			res.Cascaded = append(res.Cascaded, e.cascade(holder, cond)...)
		}
	}
}

// RemoveCondition removes one condition from holder and every condition across
// the roster anchored to it.
//
// Postcondition: Returns Removal{Removed: false} when the id is not present on
// holder; an error only when holderID is unknown.
func (e *Encounter) RemoveCondition(holderID, conditionID string) (Removal, error) {
	holder, err := e.lookup(holderID)
	if err != nil {
		return Removal{}, err
	}
	cond, ok := holder.RemoveCondition(conditionID)
	if !ok {
		return Removal{}, nil
	}
	res := Removal{Removed: true, Cascaded: e.cascade(holder, cond)}
	e.logger.Debug("condition removed",
		zap.String("holder", holder.Name),
		zap.Stringer("condition", cond.Name),
		zap.Strings("cascaded", res.Cascaded),
	)
	return res, nil
}

// BreakConcentration removes holder's concentration and everything anchored to it.
func (e *Encounter) BreakConcentration(holderID string) (Removal, error) {
	holder, err := e.lookup(holderID)
	if err != nil {
		return Removal{}, err
	}
	cond, ok := holder.Concentration()
	if !ok {
		return Removal{}, nil
	}
	return e.RemoveCondition(holderID, cond.ID)
}

// cascade sweeps the roster once for conditions sourced from holder and
// anchored to removed's name. Removing them does not cascade further.
func (e *Encounter) cascade(holder *Combatant, removed *condition.Condition) []string {
	var ids []string
	source := holder.Ref()
	for _, c := range e.combatants {
		for _, dep := range c.Conditions() {
			if dep.Source == source && dep.ExpiresWith == removed.Name {
				c.RemoveCondition(dep.ID)
				ids = append(ids, dep.ID)
			}
		}
	}
	return ids
}

// CheckTeamDefeat reports, per side, whether every member is disabled.
// An empty side is never disabled.
func (e *Encounter) CheckTeamDefeat() Defeat {
	return Defeat{
		AlliesDisabled:  allDisabled(e.Allies()),
		EnemiesDisabled: allDisabled(e.Enemies()),
	}
}

func allDisabled(side []*Combatant) bool {
	if len(side) == 0 {
		return false
	}
	for _, c := range side {
		if !c.IsDisabled() {
			return false
		}
	}
	return true
}

// InitiativeTies groups combatants by raw initiative, keeping only groups of two or more.
// Members appear in roster order.
func (e *Encounter) InitiativeTies() map[int][]*Combatant {
	groups := make(map[int][]*Combatant)
	for _, c := range e.combatants {
		groups[c.initiative] = append(groups[c.initiative], c)
	}
	for init, g := range groups {
		if len(g) < 2 {
			delete(groups, init)
		}
	}
	return groups
}

// ApplyDamage deals damage to the combatant with the given id. Concentration
// loss is left to the caller (see BreakConcentration).
func (e *Encounter) ApplyDamage(id string, amount int, critical bool) (DamageOutcome, error) {
	c, err := e.lookup(id)
	if err != nil {
		return DamageNone, err
	}
	out, err := c.ApplyDamage(amount, critical)
	if err != nil {
		return out, err
	}
	e.logger.Debug("damage applied",
		zap.String("target", c.Name),
		zap.Int("amount", amount),
		zap.Bool("critical", critical),
		zap.Int("hp", c.hp),
		zap.Stringer("outcome", out),
	)
	return out, nil
}

// Heal heals the combatant with the given id.
func (e *Encounter) Heal(id string, amount int, resurrection bool) error {
	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	if err := c.Heal(amount, resurrection); err != nil {
		return err
	}
	e.logger.Debug("healed",
		zap.String("target", c.Name),
		zap.Int("amount", amount),
		zap.Bool("resurrection", resurrection),
		zap.Int("hp", c.hp),
	)
	return nil
}

// DeathSave records a death saving throw for the combatant with the given id.
func (e *Encounter) DeathSave(id string, success, critical bool) (SaveOutcome, error) {
	c, err := e.lookup(id)
	if err != nil {
		return SaveNone, err
	}
	var out SaveOutcome
	if success {
		out = c.SucceedDeathSave(critical)
	} else {
		out = c.FailDeathSave(critical)
	}
	s, f := c.DeathSaves()
	e.logger.Debug("death save",
		zap.String("target", c.Name),
		zap.Bool("success", success),
		zap.Bool("critical", critical),
		zap.Int("successes", s),
		zap.Int("failures", f),
		zap.Stringer("outcome", out),
	)
	return out, nil
}

// ApplyCondition applies spec to the combatant with the given id. Source and
// Target, when set, must reference roster members.
func (e *Encounter) ApplyCondition(id string, spec condition.Spec) (ApplyOutcome, *condition.Condition, error) {
	c, err := e.lookup(id)
	if err != nil {
		return Added, nil, err
	}
	for _, ref := range []condition.Ref{spec.Source, spec.Target} {
		if ref.IsSet() {
			if _, err := e.lookup(string(ref)); err != nil {
				return Added, nil, err
			}
		}
	}
	out, cond, err := c.ApplyCondition(spec)
	if err != nil {
		return out, nil, err
	}
	e.logger.Debug("condition applied",
		zap.String("target", c.Name),
		zap.Stringer("condition", spec.Name),
		zap.Stringer("outcome", out),
	)
	return out, cond, nil
}

// BuffMaxHP raises the maximum HP of the combatant with the given id.
func (e *Encounter) BuffMaxHP(id string, amount int, heal bool) error {
	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	return c.BuffMaxHP(amount, heal)
}

// DebuffMaxHP lowers the maximum HP of the combatant with the given id.
func (e *Encounter) DebuffMaxHP(id string, amount int) (DamageOutcome, error) {
	c, err := e.lookup(id)
	if err != nil {
		return DamageNone, err
	}
	return c.DebuffMaxHP(amount)
}

// RestoreMaxHP undoes max-HP debuffs on the combatant with the given id.
func (e *Encounter) RestoreMaxHP(id string) error {
	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	c.RestoreMaxHP()
	return nil
}

func (e *Encounter) lookup(id string) (*Combatant, error) {
	c, ok := e.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCombatant, id)
	}
	return c, nil
}

// Get returns the combatant with the given id.
func (e *Encounter) Get(id string) (*Combatant, bool) {
	c, ok := e.byID[id]
	return c, ok
}

// FindByName returns the first combatant in turn order with the given name.
func (e *Encounter) FindByName(name string) (*Combatant, bool) {
	for _, c := range e.combatants {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// HasName reports whether a combatant with the given name is already on the
// roster, so callers can confirm duplicates.
func (e *Encounter) HasName(name string) bool {
	_, ok := e.FindByName(name)
	return ok
}

// Combatants returns the roster in turn order.
func (e *Encounter) Combatants() []*Combatant {
	out := make([]*Combatant, len(e.combatants))
	copy(out, e.combatants)
	return out
}

// Allies returns the ally combatants in turn order.
func (e *Encounter) Allies() []*Combatant { return e.side(SideAlly) }

// Enemies returns the enemy combatants in turn order.
func (e *Encounter) Enemies() []*Combatant { return e.side(SideEnemy) }

func (e *Encounter) side(s Side) []*Combatant {
	var out []*Combatant
	for _, c := range e.combatants {
		if c.Side == s {
			out = append(out, c)
		}
	}
	return out
}

// Current returns the combatant whose turn it is, or nil before combat starts
// or on an empty roster.
func (e *Encounter) Current() *Combatant {
	if !e.started || len(e.combatants) == 0 {
		return nil
	}
	return e.combatants[e.current]
}

// Round returns the current round number, starting at 1.
func (e *Encounter) Round() int { return e.round }

// EligibleFrom returns the first round in which the combatant may act.
func (e *Encounter) EligibleFrom(id string) (int, bool) {
	r, ok := e.eligibleFrom[id]
	return r, ok
}
