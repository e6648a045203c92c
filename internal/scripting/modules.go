package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// indefinite mirrors the engine's never-expiring duration.
const indefinite = -1

// RegisterModules registers the tracker global table into L:
//
//	tracker.damage(name, amount [, critical])         -> outcome
//	tracker.heal(name, amount [, resurrection])
//	tracker.death_save(name, success [, critical])    -> outcome
//	tracker.apply(name, condition [, opts])           -> outcome
//	tracker.remove(name, condition)                   -> removed
//	tracker.advance()                                 -> actor, round
//	tracker.hp(name)                                  -> hp or nil
//	tracker.has(name, condition)                      -> bool
//	tracker.round()                                   -> round
//	tracker.combatant(name)                           -> table or nil
//	tracker.roll(expr)                                -> total
//	tracker.log.debug/info/warn/error(msg)
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: tracker global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	tracker := L.NewTable()
	L.SetFuncs(tracker, map[string]lua.LGFunction{
		"damage":     m.luaDamage,
		"heal":       m.luaHeal,
		"death_save": m.luaDeathSave,
		"apply":      m.luaApply,
		"remove":     m.luaRemove,
		"advance":    m.luaAdvance,
		"hp":         m.luaHP,
		"has":        m.luaHas,
		"round":      m.luaRound,
		"combatant":  m.luaCombatant,
		"roll":       m.luaRoll,
	})

	logTbl := L.NewTable()
	L.SetFuncs(logTbl, map[string]lua.LGFunction{
		"debug": m.luaLog(zap.DebugLevel),
		"info":  m.luaLog(zap.InfoLevel),
		"warn":  m.luaLog(zap.WarnLevel),
		"error": m.luaLog(zap.ErrorLevel),
	})
	tracker.RawSetString("log", logTbl)

	L.SetGlobal("tracker", tracker)
}

func unbound(L *lua.LState, fn string) int {
	L.RaiseError("tracker.%s: not bound to an encounter", fn)
	return 0
}

func (m *Manager) luaDamage(L *lua.LState) int {
	if m.Damage == nil {
		return unbound(L, "damage")
	}
	out, err := m.Damage(L.CheckString(1), L.CheckInt(2), L.OptBool(3, false))
	if err != nil {
		L.RaiseError("tracker.damage: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func (m *Manager) luaHeal(L *lua.LState) int {
	if m.Heal == nil {
		return unbound(L, "heal")
	}
	if err := m.Heal(L.CheckString(1), L.CheckInt(2), L.OptBool(3, false)); err != nil {
		L.RaiseError("tracker.heal: %s", err.Error())
	}
	return 0
}

func (m *Manager) luaDeathSave(L *lua.LState) int {
	if m.DeathSave == nil {
		return unbound(L, "death_save")
	}
	out, err := m.DeathSave(L.CheckString(1), L.CheckBool(2), L.OptBool(3, false))
	if err != nil {
		L.RaiseError("tracker.death_save: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func (m *Manager) luaApply(L *lua.LState) int {
	if m.Apply == nil {
		return unbound(L, "apply")
	}
	req := ConditionRequest{Name: L.CheckString(2), Duration: indefinite}
	if opts := L.OptTable(3, nil); opts != nil {
		if d, ok := opts.RawGetString("duration").(lua.LNumber); ok {
			req.Duration = int(d)
		}
		req.Timing = lua.LVAsString(opts.RawGetString("timing"))
		req.Owner = lua.LVAsString(opts.RawGetString("owner"))
		req.Source = lua.LVAsString(opts.RawGetString("source"))
		req.ExpiresWith = lua.LVAsString(opts.RawGetString("expires_with"))
	}
	out, err := m.Apply(L.CheckString(1), req)
	if err != nil {
		L.RaiseError("tracker.apply: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func (m *Manager) luaRemove(L *lua.LState) int {
	if m.Remove == nil {
		return unbound(L, "remove")
	}
	removed, err := m.Remove(L.CheckString(1), L.CheckString(2))
	if err != nil {
		L.RaiseError("tracker.remove: %s", err.Error())
		return 0
	}
	L.Push(lua.LBool(removed))
	return 1
}

func (m *Manager) luaAdvance(L *lua.LState) int {
	if m.Advance == nil {
		return unbound(L, "advance")
	}
	turn, err := m.Advance()
	if err != nil {
		L.RaiseError("tracker.advance: %s", err.Error())
		return 0
	}
	if turn == nil {
		L.Push(lua.LNil)
		L.Push(lua.LNil)
		return 2
	}
	L.Push(lua.LString(turn.Actor))
	L.Push(lua.LNumber(turn.Round))
	return 2
}

func (m *Manager) lookup(L *lua.LState, fn string) *CombatantInfo {
	if m.GetCombatant == nil {
		unbound(L, fn)
		return nil
	}
	return m.GetCombatant(L.CheckString(1))
}

func (m *Manager) luaHP(L *lua.LState) int {
	info := m.lookup(L, "hp")
	if info == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(info.HP))
	return 1
}

func (m *Manager) luaHas(L *lua.LState) int {
	info := m.lookup(L, "has")
	want := L.CheckString(2)
	if info != nil {
		for _, c := range info.Conditions {
			if c == want {
				L.Push(lua.LTrue)
				return 1
			}
		}
	}
	L.Push(lua.LFalse)
	return 1
}

func (m *Manager) luaRound(L *lua.LState) int {
	if m.Round == nil {
		return unbound(L, "round")
	}
	L.Push(lua.LNumber(m.Round()))
	return 1
}

func (m *Manager) luaCombatant(L *lua.LState) int {
	info := m.lookup(L, "combatant")
	if info == nil {
		L.Push(lua.LNil)
		return 1
	}
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LString(info.ID))
	tbl.RawSetString("name", lua.LString(info.Name))
	tbl.RawSetString("side", lua.LString(info.Side))
	tbl.RawSetString("state", lua.LString(info.State))
	tbl.RawSetString("hp", lua.LNumber(info.HP))
	tbl.RawSetString("current_max_hp", lua.LNumber(info.CurrentMaxHP))
	tbl.RawSetString("max_hp", lua.LNumber(info.MaxHP))
	tbl.RawSetString("ac", lua.LNumber(info.AC))
	conds := L.NewTable()
	for _, c := range info.Conditions {
		conds.Append(lua.LString(c))
	}
	tbl.RawSetString("conditions", conds)
	L.Push(tbl)
	return 1
}

func (m *Manager) luaRoll(L *lua.LState) int {
	res, err := m.roller.RollExpr(L.CheckString(1))
	if err != nil {
		L.RaiseError("tracker.roll: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(res.Total()))
	return 1
}

func (m *Manager) luaLog(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		if ce := m.logger.Check(level, L.CheckString(1)); ce != nil {
			ce.Write(zap.String("source", "lua"))
		}
		return 0
	}
}
