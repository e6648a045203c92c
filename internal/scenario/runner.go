package scenario

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/initiative/internal/game/combat"
	"github.com/cory-johannsen/initiative/internal/game/condition"
	"github.com/cory-johannsen/initiative/internal/game/dice"
	"github.com/cory-johannsen/initiative/internal/scripting"
)

// Script hooks called by Run when a scenario declares a script.
const (
	// HookTurn is called as on_turn(actor_name, round) after every turn change.
	HookTurn = "on_turn"
	// HookFinish is called as on_finish() after the last step.
	HookFinish = "on_finish"
)

// StepResult reports what one scenario step did.
type StepResult struct {
	// Index is the 1-based step number.
	Index  int
	Action string
	// Target is the combatant name the step acted on, if any.
	Target string
	// Detail is a human-readable account of the outcome.
	Detail string
	// Turns lists the turn changes the step caused, in order.
	Turns []*combat.TurnResult
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for step outcomes.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithScripts enables scenario scripts, executed by mgr.
func WithScripts(mgr *scripting.Manager) Option {
	return func(r *Runner) { r.scripts = mgr }
}

// Runner plays scenarios against one Encounter, addressing combatants by name.
//
// It is not safe for concurrent use; the caller must serialise access.
type Runner struct {
	enc     *combat.Encounter
	roller  *dice.Roller
	scripts *scripting.Manager
	logger  *zap.Logger
	ids     map[string]string
	key     string
}

// NewRunner creates a Runner for enc. Initiative and death-save rolls use roller.
//
// Precondition: enc and roller must be non-nil.
func NewRunner(enc *combat.Encounter, roller *dice.Roller, opts ...Option) *Runner {
	r := &Runner{
		enc:    enc,
		roller: roller,
		logger: zap.NewNop(),
		ids:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Encounter returns the encounter the runner drives.
func (r *Runner) Encounter() *combat.Encounter { return r.enc }

// Run validates sc, adds its roster, loads its script and executes every step.
//
// Postcondition: On success returns one StepResult per step. On a failing
// step returns the results of the steps before it and an error naming the step.
func (r *Runner) Run(sc *Scenario) ([]StepResult, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	for _, def := range sc.Combatants {
		if _, err := r.join(def); err != nil {
			return nil, fmt.Errorf("adding combatant %q: %w", def.Name, err)
		}
	}
	if err := r.loadScript(sc); err != nil {
		return nil, err
	}

	results := make([]StepResult, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		res, err := r.Exec(step)
		res.Index = i + 1
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", res.Index, res.Action, err)
		}
		r.logger.Debug("scenario step",
			zap.Int("index", res.Index),
			zap.String("action", res.Action),
			zap.String("target", res.Target),
			zap.String("detail", res.Detail),
		)
		for _, turn := range res.Turns {
			r.hook(HookTurn, lua.LString(turn.Actor.Name), lua.LNumber(turn.Round))
		}
		results = append(results, res)
	}
	r.hook(HookFinish)

	defeat := r.enc.CheckTeamDefeat()
	r.logger.Info("scenario finished",
		zap.String("scenario", sc.Name),
		zap.Int("steps", len(results)),
		zap.Int("round", r.enc.Round()),
		zap.Bool("allies_disabled", defeat.AlliesDisabled),
		zap.Bool("enemies_disabled", defeat.EnemiesDisabled),
	)
	return results, nil
}

func (r *Runner) loadScript(sc *Scenario) error {
	path := sc.ScriptPath()
	if path == "" {
		return nil
	}
	if r.scripts == nil {
		r.logger.Warn("scenario script skipped: scripting disabled",
			zap.String("scenario", sc.Name),
			zap.String("script", path),
		)
		return nil
	}
	r.Bind(r.scripts)
	r.key = sc.Name
	if r.key == "" {
		r.key = "scenario"
	}
	if err := r.scripts.LoadFile(r.key, path); err != nil {
		return fmt.Errorf("loading scenario script: %w", err)
	}
	return nil
}

func (r *Runner) hook(name string, args ...lua.LValue) {
	if r.scripts == nil || r.key == "" {
		return
	}
	r.scripts.CallHook(r.key, name, args...) //nolint:errcheck // Lua errors are logged by the manager
}

// Exec runs a single step. Index is left zero.
//
// Precondition: step holds exactly one action and its names are on the roster.
func (r *Runner) Exec(step Step) (StepResult, error) {
	actions := step.Actions()
	if len(actions) != 1 {
		return StepResult{}, fmt.Errorf("%w: exactly one action required, got %v", ErrInvalidScenario, actions)
	}
	res := StepResult{Action: actions[0]}
	var err error

	switch {
	case step.Start != nil:
		var turn *combat.TurnResult
		if turn, err = r.enc.Start(); err == nil {
			res.Turns = []*combat.TurnResult{turn}
			res.Detail = "combat begins: " + describeTurn(turn)
		}

	case step.Advance != nil:
		res.Turns, res.Detail = r.advance(max(step.Advance.Count, 1))

	case step.Join != nil:
		res.Target = step.Join.Name
		var c *combat.Combatant
		if c, err = r.join(*step.Join); err == nil {
			from, _ := r.enc.EligibleFrom(c.ID)
			res.Detail = fmt.Sprintf("%s joins at initiative %d, acting from round %d", c.Name, c.Initiative(), from)
		}

	case step.Damage != nil:
		s := step.Damage
		res.Target = s.Target
		_, res.Detail, err = r.damage(s.Target, s.Amount, s.Critical)

	case step.Heal != nil:
		s := step.Heal
		res.Target = s.Target
		res.Detail, err = r.heal(s.Target, s.Amount, s.Resurrection)

	case step.DeathSave != nil:
		s := step.DeathSave
		res.Target = s.Target
		_, res.Detail, err = r.deathSave(s.Target, s.Success, s.Critical)

	case step.RollDeathSave != nil:
		res.Target = step.RollDeathSave.Target
		res.Detail, err = r.rollDeathSave(res.Target)

	case step.Condition != nil:
		res.Target = step.Condition.Target
		_, res.Detail, err = r.applyCondition(*step.Condition)

	case step.Remove != nil:
		res.Target = step.Remove.Target
		_, res.Detail, err = r.removeCondition(res.Target, step.Remove.Condition)

	case step.BreakConcentration != nil:
		res.Target = step.BreakConcentration.Target
		var id string
		if id, err = r.resolve(res.Target); err == nil {
			var rm combat.Removal
			if rm, err = r.enc.BreakConcentration(id); err == nil {
				res.Detail = describeRemoval(res.Target, condition.Concentration, rm)
			}
		}

	case step.Buff != nil:
		s := step.Buff
		res.Target = s.Target
		res.Detail, err = r.buff(s.Target, s.Amount, s.Heal)

	case step.Debuff != nil:
		s := step.Debuff
		res.Target = s.Target
		_, res.Detail, err = r.debuff(s.Target, s.Amount)

	case step.Restore != nil:
		res.Target = step.Restore.Target
		var id string
		if id, err = r.resolve(res.Target); err == nil {
			if err = r.enc.RestoreMaxHP(id); err == nil {
				res.Detail = r.status(id, "max hp restored")
			}
		}

	case step.Tiebreak != nil:
		s := step.Tiebreak
		res.Target = s.Target
		var id string
		if id, err = r.resolve(s.Target); err == nil {
			if err = r.enc.SetTiebreak(id, s.Priority); err == nil {
				res.Detail = fmt.Sprintf("%s tiebreak set to %d; order: %s", s.Target, s.Priority, r.order())
			}
		}
	}
	return res, err
}

func (r *Runner) resolve(name string) (string, error) {
	id, ok := r.ids[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", combat.ErrUnknownCombatant, name)
	}
	return id, nil
}

func (r *Runner) resolveRef(name string) (condition.Ref, error) {
	id, err := r.resolve(name)
	return condition.Ref(id), err
}

func (r *Runner) join(def CombatantDef) (*combat.Combatant, error) {
	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScenario, err)
	}
	if _, dup := r.ids[def.Name]; dup {
		return nil, fmt.Errorf("%w: duplicate combatant name %q", ErrInvalidScenario, def.Name)
	}
	initiative, err := r.initiative(def)
	if err != nil {
		return nil, err
	}
	c, err := r.enc.AddCombatant(def.params(initiative))
	if err != nil {
		return nil, err
	}
	r.ids[c.Name] = c.ID
	return c, nil
}

func (r *Runner) initiative(def CombatantDef) (int, error) {
	if def.Initiative != nil {
		return *def.Initiative, nil
	}
	expr := def.InitiativeRoll
	if expr == "" {
		expr = "1d20"
	}
	res, err := r.roller.RollExpr(expr)
	if err != nil {
		return 0, err
	}
	return res.Total(), nil
}

func (r *Runner) advance(count int) ([]*combat.TurnResult, string) {
	var turns []*combat.TurnResult
	var parts []string
	for i := 0; i < count; i++ {
		turn := r.enc.AdvanceTurn()
		if turn == nil {
			return turns, "no combatants"
		}
		turns = append(turns, turn)
		parts = append(parts, describeTurn(turn))
	}
	return turns, strings.Join(parts, "; ")
}

func (r *Runner) damage(name string, amount int, critical bool) (combat.DamageOutcome, string, error) {
	id, err := r.resolve(name)
	if err != nil {
		return combat.DamageNone, "", err
	}
	out, err := r.enc.ApplyDamage(id, amount, critical)
	if err != nil {
		return out, "", err
	}
	detail := r.status(id, fmt.Sprintf("takes %d damage", amount))
	if out != combat.DamageNone {
		detail += r.dropConcentration(id)
	}
	return out, detail, nil
}

func (r *Runner) heal(name string, amount int, resurrection bool) (string, error) {
	id, err := r.resolve(name)
	if err != nil {
		return "", err
	}
	if err := r.enc.Heal(id, amount, resurrection); err != nil {
		return "", err
	}
	return r.status(id, fmt.Sprintf("heals %d", amount)), nil
}

func (r *Runner) deathSave(name string, success, critical bool) (combat.SaveOutcome, string, error) {
	id, err := r.resolve(name)
	if err != nil {
		return combat.SaveNone, "", err
	}
	out, err := r.enc.DeathSave(id, success, critical)
	if err != nil {
		return out, "", err
	}
	return out, r.saveStatus(id, out), nil
}

func (r *Runner) rollDeathSave(name string) (string, error) {
	id, err := r.resolve(name)
	if err != nil {
		return "", err
	}
	out, roll, err := r.enc.RollDeathSave(id, r.roller.Source())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rolls %d: %s", roll, r.saveStatus(id, out)), nil
}

// applyCondition applies cs, resolving concentration the way a table would:
// a second concentration replaces the first, and a condition that breaks
// concentration ends the target's.
func (r *Runner) applyCondition(cs ConditionStep) (combat.ApplyOutcome, string, error) {
	id, err := r.resolve(cs.Target)
	if err != nil {
		return combat.Added, "", err
	}
	spec, err := cs.spec(r.resolveRef)
	if err != nil {
		return combat.Added, "", err
	}
	out, cond, err := r.enc.ApplyCondition(id, spec)
	if err != nil {
		return out, "", err
	}

	detail := fmt.Sprintf("%s gains %s", cs.Target, spec.Name)
	switch out {
	case combat.DuplicateIgnored:
		detail = fmt.Sprintf("%s already has %s", cs.Target, spec.Name)
	case combat.ConcentrationReplaceRequested:
		rm, err := r.enc.RemoveCondition(id, cond.ID)
		if err != nil {
			return out, "", err
		}
		if _, _, err := r.enc.ApplyCondition(id, spec); err != nil {
			return out, "", err
		}
		detail = fmt.Sprintf("%s replaces concentration (%d cascaded)", cs.Target, len(rm.Cascaded))
	case combat.AddedBreaksConcentration:
		detail += r.dropConcentration(id)
	}
	return out, detail, nil
}

func (r *Runner) removeCondition(name, label string) (bool, string, error) {
	id, err := r.resolve(name)
	if err != nil {
		return false, "", err
	}
	n, err := condition.Parse(label)
	if err != nil {
		return false, "", err
	}
	c, _ := r.enc.Get(id)
	for _, cond := range c.Conditions() {
		if cond.Name != n {
			continue
		}
		rm, err := r.enc.RemoveCondition(id, cond.ID)
		if err != nil {
			return false, "", err
		}
		return rm.Removed, describeRemoval(name, n, rm), nil
	}
	return false, fmt.Sprintf("%s has no %s", name, n), nil
}

func (r *Runner) buff(name string, amount int, heal bool) (string, error) {
	id, err := r.resolve(name)
	if err != nil {
		return "", err
	}
	if err := r.enc.BuffMaxHP(id, amount, heal); err != nil {
		return "", err
	}
	return r.status(id, fmt.Sprintf("max hp +%d", amount)), nil
}

func (r *Runner) debuff(name string, amount int) (combat.DamageOutcome, string, error) {
	id, err := r.resolve(name)
	if err != nil {
		return combat.DamageNone, "", err
	}
	out, err := r.enc.DebuffMaxHP(id, amount)
	if err != nil {
		return out, "", err
	}
	detail := r.status(id, fmt.Sprintf("max hp -%d", amount))
	if out != combat.DamageNone {
		detail += r.dropConcentration(id)
	}
	return out, detail, nil
}

// dropConcentration ends id's concentration, if any, and describes the loss.
func (r *Runner) dropConcentration(id string) string {
	c, _ := r.enc.Get(id)
	if _, ok := c.Concentration(); !ok {
		return ""
	}
	rm, err := r.enc.BreakConcentration(id)
	if err != nil || !rm.Removed {
		return ""
	}
	return fmt.Sprintf("; concentration broken (%d cascaded)", len(rm.Cascaded))
}

func (r *Runner) status(id, what string) string {
	c, _ := r.enc.Get(id)
	return fmt.Sprintf("%s %s (hp %d/%d, %s)", c.Name, what, c.HP(), c.CurrentMaxHP(), c.State())
}

func (r *Runner) saveStatus(id string, out combat.SaveOutcome) string {
	c, _ := r.enc.Get(id)
	s, f := c.DeathSaves()
	return fmt.Sprintf("%s death save: %s (successes %d, failures %d, hp %d)", c.Name, out, s, f, c.HP())
}

func (r *Runner) order() string {
	cs := r.enc.Combatants()
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func describeTurn(t *combat.TurnResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s's turn (round %d)", t.Actor.Name, t.Round)
	if n := len(t.Expired); n > 0 {
		fmt.Fprintf(&b, ", %d expired", n)
	}
	if n := len(t.Cascaded); n > 0 {
		fmt.Fprintf(&b, ", %d cascaded", n)
	}
	if t.Defeat.AlliesDisabled {
		b.WriteString(", allies defeated")
	}
	if t.Defeat.EnemiesDisabled {
		b.WriteString(", enemies defeated")
	}
	return b.String()
}

func describeRemoval(name string, n condition.Name, rm combat.Removal) string {
	if !rm.Removed {
		return fmt.Sprintf("%s has no %s", name, n)
	}
	return fmt.Sprintf("%s loses %s (%d cascaded)", name, n, len(rm.Cascaded))
}

// Bind wires mgr's tracker.* callbacks to this runner's encounter. Scripts
// address combatants by name.
func (r *Runner) Bind(mgr *scripting.Manager) {
	mgr.GetCombatant = func(name string) *scripting.CombatantInfo {
		id, err := r.resolve(name)
		if err != nil {
			return nil
		}
		c, _ := r.enc.Get(id)
		info := &scripting.CombatantInfo{
			ID:           c.ID,
			Name:         c.Name,
			Side:         c.Side.String(),
			State:        c.State().String(),
			HP:           c.HP(),
			CurrentMaxHP: c.CurrentMaxHP(),
			MaxHP:        c.MaxHP(),
			AC:           c.AC,
		}
		for _, cond := range c.Conditions() {
			info.Conditions = append(info.Conditions, cond.Name.String())
		}
		return info
	}
	mgr.Damage = func(name string, amount int, critical bool) (string, error) {
		out, _, err := r.damage(name, amount, critical)
		return out.String(), err
	}
	mgr.Heal = func(name string, amount int, resurrection bool) error {
		_, err := r.heal(name, amount, resurrection)
		return err
	}
	mgr.DeathSave = func(name string, success, critical bool) (string, error) {
		out, _, err := r.deathSave(name, success, critical)
		return out.String(), err
	}
	mgr.Apply = func(name string, req scripting.ConditionRequest) (string, error) {
		duration := req.Duration
		out, _, err := r.applyCondition(ConditionStep{
			Target:      name,
			Name:        req.Name,
			Duration:    &duration,
			Timing:      req.Timing,
			Owner:       req.Owner,
			Source:      req.Source,
			ExpiresWith: req.ExpiresWith,
		})
		return out.String(), err
	}
	mgr.Remove = func(name, label string) (bool, error) {
		removed, _, err := r.removeCondition(name, label)
		return removed, err
	}
	// Script-driven turns do not fire on_turn; the hook is already running.
	mgr.Advance = func() (*scripting.TurnInfo, error) {
		turn := r.enc.AdvanceTurn()
		if turn == nil {
			return nil, errors.New("no combatants")
		}
		return &scripting.TurnInfo{Actor: turn.Actor.Name, Round: turn.Round}, nil
	}
	mgr.Round = r.enc.Round
}
