// Package scenario loads YAML encounter scenarios and plays them against a
// combat.Encounter: a roster, then a scripted stream of commands, optionally
// followed by Lua hooks.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/initiative/internal/game/combat"
	"github.com/cory-johannsen/initiative/internal/game/condition"
	"github.com/cory-johannsen/initiative/internal/game/dice"
)

// ErrInvalidScenario is returned when a scenario fails static validation.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is one scripted encounter.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Combatants  []CombatantDef `yaml:"combatants"`
	Steps       []Step         `yaml:"steps"`
	// Script is a Lua file, relative to the scenario file, whose hooks run
	// during the scenario.
	Script string `yaml:"script"`

	// Dir is the directory Script is resolved against. LoadFile sets it.
	Dir string `yaml:"-"`
}

// CombatantDef declares a combatant in the roster or in a join step.
type CombatantDef struct {
	Name string `yaml:"name"`
	Side string `yaml:"side"`
	// Initiative is a fixed initiative. When nil, InitiativeRoll (default 1d20) is rolled.
	Initiative     *int   `yaml:"initiative"`
	InitiativeRoll string `yaml:"initiative_roll"`
	Tiebreak       int    `yaml:"tiebreak"`
	AC             int    `yaml:"ac"`
	// HP defaults to MaxHP when omitted.
	HP    *int `yaml:"hp"`
	MaxHP int  `yaml:"max_hp"`
}

// Step holds exactly one action.
type Step struct {
	Start              *StartStep     `yaml:"start"`
	Advance            *AdvanceStep   `yaml:"advance"`
	Join               *CombatantDef  `yaml:"join"`
	Damage             *DamageStep    `yaml:"damage"`
	Heal               *HealStep      `yaml:"heal"`
	DeathSave          *DeathSaveStep `yaml:"death_save"`
	RollDeathSave      *TargetStep    `yaml:"roll_death_save"`
	Condition          *ConditionStep `yaml:"condition"`
	Remove             *RemoveStep    `yaml:"remove"`
	BreakConcentration *TargetStep    `yaml:"break_concentration"`
	Buff               *BuffStep      `yaml:"buff"`
	Debuff             *DebuffStep    `yaml:"debuff"`
	Restore            *TargetStep    `yaml:"restore"`
	Tiebreak           *TiebreakStep  `yaml:"tiebreak"`
}

type StartStep struct{}

type AdvanceStep struct {
	// Count is the number of turns to advance; zero means one.
	Count int `yaml:"count"`
}

type TargetStep struct {
	Target string `yaml:"target"`
}

type DamageStep struct {
	Target   string `yaml:"target"`
	Amount   int    `yaml:"amount"`
	Critical bool   `yaml:"critical"`
}

type HealStep struct {
	Target       string `yaml:"target"`
	Amount       int    `yaml:"amount"`
	Resurrection bool   `yaml:"resurrection"`
}

type DeathSaveStep struct {
	Target   string `yaml:"target"`
	Success  bool   `yaml:"success"`
	Critical bool   `yaml:"critical"`
}

// ConditionStep applies a condition to Target. Duration defaults to indefinite.
type ConditionStep struct {
	Target      string `yaml:"target"`
	Name        string `yaml:"name"`
	Duration    *int   `yaml:"duration"`
	Timing      string `yaml:"timing"`
	Owner       string `yaml:"owner"`
	Source      string `yaml:"source"`
	ExpiresWith string `yaml:"expires_with"`
}

type RemoveStep struct {
	Target    string `yaml:"target"`
	Condition string `yaml:"condition"`
}

type BuffStep struct {
	Target string `yaml:"target"`
	Amount int    `yaml:"amount"`
	Heal   bool   `yaml:"heal"`
}

type DebuffStep struct {
	Target string `yaml:"target"`
	Amount int    `yaml:"amount"`
}

type TiebreakStep struct {
	Target   string `yaml:"target"`
	Priority int    `yaml:"priority"`
}

// Actions returns the names of the actions set on s, in declaration order.
func (s Step) Actions() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(s.Start != nil, "start")
	add(s.Advance != nil, "advance")
	add(s.Join != nil, "join")
	add(s.Damage != nil, "damage")
	add(s.Heal != nil, "heal")
	add(s.DeathSave != nil, "death_save")
	add(s.RollDeathSave != nil, "roll_death_save")
	add(s.Condition != nil, "condition")
	add(s.Remove != nil, "remove")
	add(s.BreakConcentration != nil, "break_concentration")
	add(s.Buff != nil, "buff")
	add(s.Debuff != nil, "debuff")
	add(s.Restore != nil, "restore")
	add(s.Tiebreak != nil, "tiebreak")
	return out
}

// ScriptPath returns Script resolved against Dir, or "" when no script is set.
func (sc *Scenario) ScriptPath() string {
	if sc.Script == "" {
		return ""
	}
	if filepath.IsAbs(sc.Script) || sc.Dir == "" {
		return sc.Script
	}
	return filepath.Join(sc.Dir, sc.Script)
}

// LoadFile reads and validates a scenario YAML file.
//
// Precondition: path must point to a scenario file.
// Postcondition: Returns a validated Scenario with Dir set, or a non-nil error.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	sc, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	sc.Dir = filepath.Dir(path)
	return sc, nil
}

// LoadBytes parses and validates a scenario. Unknown keys are rejected.
//
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadBytes(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario without running it: unique combatant names,
// one action per step, targets declared before use, and well-formed
// condition, timing and dice text.
//
// Postcondition: Returns nil or an error wrapping ErrInvalidScenario that lists every violation.
func (sc *Scenario) Validate() error {
	var errs []string
	known := make(map[string]bool)

	declare := func(where string, def CombatantDef) {
		if err := def.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", where, err))
		}
		if known[def.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate combatant name %q", where, def.Name))
		}
		known[def.Name] = true
	}
	target := func(where, name string) {
		if !known[name] {
			errs = append(errs, fmt.Sprintf("%s: unknown combatant %q", where, name))
		}
	}

	for i, def := range sc.Combatants {
		declare(fmt.Sprintf("combatant %d", i+1), def)
	}

	for i, step := range sc.Steps {
		where := fmt.Sprintf("step %d", i+1)
		actions := step.Actions()
		if len(actions) != 1 {
			errs = append(errs, fmt.Sprintf("%s: exactly one action required, got %d %v", where, len(actions), actions))
			continue
		}
		where += " (" + actions[0] + ")"

		switch {
		case step.Advance != nil:
			if step.Advance.Count < 0 {
				errs = append(errs, fmt.Sprintf("%s: count must be >= 0", where))
			}
		case step.Join != nil:
			declare(where, *step.Join)
		case step.Damage != nil:
			target(where, step.Damage.Target)
			if step.Damage.Amount < 0 {
				errs = append(errs, fmt.Sprintf("%s: amount must be >= 0", where))
			}
		case step.Heal != nil:
			target(where, step.Heal.Target)
			if step.Heal.Amount < 0 {
				errs = append(errs, fmt.Sprintf("%s: amount must be >= 0", where))
			}
		case step.DeathSave != nil:
			target(where, step.DeathSave.Target)
		case step.RollDeathSave != nil:
			target(where, step.RollDeathSave.Target)
		case step.Condition != nil:
			target(where, step.Condition.Target)
			if s := step.Condition.Source; s != "" {
				target(where, s)
			}
			// Names stand in for combatant IDs here; only presence matters.
			if _, err := step.Condition.spec(func(name string) (condition.Ref, error) {
				return condition.Ref(name), nil
			}); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %s", where, err))
			}
		case step.Remove != nil:
			target(where, step.Remove.Target)
			if _, err := condition.Parse(step.Remove.Condition); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %s", where, err))
			}
		case step.BreakConcentration != nil:
			target(where, step.BreakConcentration.Target)
		case step.Buff != nil:
			target(where, step.Buff.Target)
			if step.Buff.Amount <= 0 {
				errs = append(errs, fmt.Sprintf("%s: amount must be > 0", where))
			}
		case step.Debuff != nil:
			target(where, step.Debuff.Target)
			if step.Debuff.Amount <= 0 {
				errs = append(errs, fmt.Sprintf("%s: amount must be > 0", where))
			}
		case step.Restore != nil:
			target(where, step.Restore.Target)
		case step.Tiebreak != nil:
			target(where, step.Tiebreak.Target)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidScenario, strings.Join(errs, "; "))
	}
	return nil
}

func (d CombatantDef) validate() error {
	var errs []string
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, "name must not be empty")
	}
	if _, err := parseSide(d.Side); err != nil {
		errs = append(errs, err.Error())
	}
	if d.MaxHP < 1 {
		errs = append(errs, fmt.Sprintf("max_hp must be >= 1, got %d", d.MaxHP))
	}
	if d.HP != nil && *d.HP < 0 {
		errs = append(errs, fmt.Sprintf("hp must be >= 0, got %d", *d.HP))
	}
	if d.Initiative != nil && d.InitiativeRoll != "" {
		errs = append(errs, "initiative and initiative_roll are mutually exclusive")
	}
	if d.InitiativeRoll != "" {
		if _, err := dice.Parse(d.InitiativeRoll); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

// params converts d into engine parameters with the given initiative.
func (d CombatantDef) params(initiative int) combat.CombatantParams {
	side, _ := parseSide(d.Side)
	hp := d.MaxHP
	if d.HP != nil {
		hp = *d.HP
	}
	return combat.CombatantParams{
		Name:       d.Name,
		Side:       side,
		Initiative: initiative,
		Tiebreak:   d.Tiebreak,
		AC:         d.AC,
		HP:         hp,
		MaxHP:      d.MaxHP,
	}
}

func parseSide(s string) (combat.Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ally":
		return combat.SideAlly, nil
	case "enemy":
		return combat.SideEnemy, nil
	default:
		return combat.SideAlly, fmt.Errorf("side must be ally or enemy, got %q", s)
	}
}

// spec builds the condition request, resolving combatant names through resolve.
func (c ConditionStep) spec(resolve func(string) (condition.Ref, error)) (condition.Spec, error) {
	name, err := condition.Parse(c.Name)
	if err != nil {
		return condition.Spec{}, err
	}
	timing, err := condition.ParseTiming(c.Timing)
	if err != nil {
		return condition.Spec{}, err
	}
	owner, err := condition.ParseOwner(c.Owner)
	if err != nil {
		return condition.Spec{}, err
	}
	spec := condition.Spec{
		Name:     name,
		Duration: condition.Indefinite,
		Timing:   timing,
		Owner:    owner,
	}
	if c.Duration != nil {
		spec.Duration = *c.Duration
	}
	if spec.Target, err = resolve(c.Target); err != nil {
		return condition.Spec{}, err
	}
	if c.Source != "" {
		if spec.Source, err = resolve(c.Source); err != nil {
			return condition.Spec{}, err
		}
	}
	if c.ExpiresWith != "" {
		if spec.ExpiresWith, err = condition.Parse(c.ExpiresWith); err != nil {
			return condition.Spec{}, err
		}
	}
	return spec, spec.Validate()
}
