package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/initiative/internal/game/dice"
	"github.com/cory-johannsen/initiative/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	mgr := scripting.NewManager(roller, logger, 0)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), filename)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func hasLevel(logs *observer.ObservedLogs, level zapcore.Level) bool {
	for _, e := range logs.All() {
		if e.Level == level {
			return true
		}
	}
	return false
}

func TestManager_LoadFile_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	path := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadFile("ambush", path))
	assert.True(t, mgr.HasHook("ambush", "test_hook"))
	ret, err := mgr.CallHook("ambush", "test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadString("ambush", `-- no functions`))
	assert.False(t, mgr.HasHook("ambush", "on_turn"))
	ret, err := mgr.CallHook("ambush", "on_turn")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_UnknownScript_LogsInfoReturnsNil(t *testing.T) {
	mgr, logs := newTestManager(t)
	ret, err := mgr.CallHook("no_such_script", "on_turn")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.True(t, hasLevel(logs, zap.InfoLevel), "expected Info log for missing script")
}

func TestManager_CallHook_RuntimeError_WarnLogNoPanic(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.LoadString("ambush", `
		function bad_hook()
			error("intentional error")
		end
	`))
	ret, err := mgr.CallHook("ambush", "bad_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.True(t, hasLevel(logs, zap.WarnLevel), "expected Warn log for Lua runtime error")
}

func TestManager_LoadFile_InvalidLua_ReturnsError(t *testing.T) {
	mgr, logs := newTestManager(t)
	path := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	assert.Error(t, mgr.LoadFile("bad", path))
	assert.False(t, mgr.HasHook("bad", "anything"))
	assert.True(t, hasLevel(logs, zap.WarnLevel))
}

func TestManager_LoadFile_MissingFile_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadFile("gone", filepath.Join(t.TempDir(), "missing.lua")))
}

func TestManager_LoadString_ReplacesExistingVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadString("s", `function get_val() return 1 end`))
	require.NoError(t, mgr.LoadString("s", `function get_val() return 2 end`))
	ret, err := mgr.CallHook("s", "get_val")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), ret)
}

func TestManager_InstructionLimitStopsRunawayScript(t *testing.T) {
	logger := zap.NewNop()
	mgr := scripting.NewManager(dice.NewLoggedRoller(dice.NewCryptoSource(), logger), logger, 50)
	defer mgr.Close()
	assert.Error(t, mgr.LoadString("spin", `while true do end`))
}

func TestNewManager_PanicsOnNilRoller(t *testing.T) {
	assert.Panics(t, func() {
		scripting.NewManager(nil, zap.NewNop(), 0)
	})
}

func TestNewManager_PanicsOnNilLogger(t *testing.T) {
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), zap.NewNop())
	assert.Panics(t, func() {
		scripting.NewManager(roller, nil, 0)
	})
}

func TestManager_Close_ReleasesScripts(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadString("closing", `function get_x() return 1 end`))
	mgr.Close()
	ret, err := mgr.CallHook("closing", "get_x")
	assert.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestProperty_CallHookMissingScriptNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	rapid.Check(t, func(rt *rapid.T) {
		key := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "script")
		hook := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "hook")
		count := rapid.IntRange(1, 20).Draw(rt, "count")
		for i := 0; i < count; i++ {
			mgr.CallHook(key, hook) //nolint:errcheck
		}
	})
}
