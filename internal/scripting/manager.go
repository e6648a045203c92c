package scripting

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/initiative/internal/game/dice"
)

// CombatantInfo is a snapshot of a combatant's state passed to Lua.
type CombatantInfo struct {
	ID           string
	Name         string
	Side         string
	State        string
	HP           int
	CurrentMaxHP int
	MaxHP        int
	AC           int
	Conditions   []string
}

// ConditionRequest is a condition application issued by a script. Empty
// strings leave the corresponding field unset.
type ConditionRequest struct {
	Name string
	// Duration in rounds; -1 is indefinite.
	Duration    int
	Timing      string
	Owner       string
	Source      string
	ExpiresWith string
}

// TurnInfo describes the turn begun by tracker.advance.
type TurnInfo struct {
	Actor string
	Round int
}

// Manager owns one sandboxed LState per loaded script and dispatches hooks.
//
// Manager serialises all VM access with a mutex; callbacks run while it is held.
type Manager struct {
	mu        sync.Mutex
	states    map[string]*lua.LState
	cancels   map[string]context.CancelFunc
	roller    *dice.Roller
	logger    *zap.Logger
	instLimit int

	// Injected after construction. A nil callback makes the matching tracker.*
	// function raise a Lua error.
	GetCombatant func(name string) *CombatantInfo
	Damage       func(name string, amount int, critical bool) (string, error)
	Heal         func(name string, amount int, resurrection bool) error
	DeathSave    func(name string, success, critical bool) (string, error)
	Apply        func(name string, req ConditionRequest) (string, error)
	Remove       func(name, condition string) (bool, error)
	Advance      func() (*TurnInfo, error)
	Round        func() int
}

// NewManager creates a Manager whose VMs run at most instLimit opcodes each.
//
// Precondition: roller and logger must be non-nil; instLimit >= 0 (0 uses
// DefaultInstructionLimit).
// Postcondition: Returns a non-nil Manager with no scripts loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		states:    make(map[string]*lua.LState),
		cancels:   make(map[string]context.CancelFunc),
		roller:    roller,
		logger:    logger,
		instLimit: instLimit,
	}
}

// LoadFile creates a sandboxed VM for key, registers the tracker module, and
// executes the script at path. A VM already loaded under key is replaced.
//
// Precondition: key must be non-empty.
// Postcondition: the VM is registered, or an error is returned on read or Lua failure.
func (m *Manager) LoadFile(key, path string) error {
	return m.load(key, func(L *lua.LState) error { return L.DoFile(path) }, path)
}

// LoadString is LoadFile for inline source.
func (m *Manager) LoadString(key, src string) error {
	return m.load(key, func(L *lua.LState) error { return L.DoString(src) }, "<string>")
}

func (m *Manager) load(key string, exec func(*lua.LState) error, origin string) error {
	L, cancel := NewSandboxedState(m.instLimit)
	m.RegisterModules(L)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := exec(L); err != nil {
		cancel()
		L.Close()
		m.logger.Warn("scripting: script failed to load",
			zap.String("script", key),
			zap.String("origin", origin),
			zap.Error(err),
		)
		return fmt.Errorf("scripting: loading %q for %q: %w", origin, key, err)
	}

	m.release(key)
	m.states[key] = L
	m.cancels[key] = cancel
	return nil
}

// HasHook reports whether the VM loaded under key defines a global function hook.
func (m *Manager) HasHook(key, hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	L, ok := m.states[key]
	if !ok {
		return false
	}
	_, isFn := L.GetGlobal(hook).(*lua.LFunction)
	return isFn
}

// CallHook calls the named Lua global function in key's VM. Returns (LNil, nil)
// if the hook is not defined or no VM exists. Lua runtime errors are logged
// at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(key, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	L, ok := m.states[key]
	if !ok {
		m.logger.Info("scripting: no VM for script",
			zap.String("script", key),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("script", key),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// Close releases every loaded VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.states {
		m.release(key)
	}
}

// release closes and forgets key's VM. The caller must hold m.mu.
func (m *Manager) release(key string) {
	if cancel := m.cancels[key]; cancel != nil {
		cancel()
	}
	if L, ok := m.states[key]; ok {
		L.Close()
	}
	delete(m.states, key)
	delete(m.cancels, key)
}
