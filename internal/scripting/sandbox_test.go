package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/initiative/internal/scripting"
)

func TestNewSandboxedState_UnsafeLibsNil(t *testing.T) {
	L, cancel := scripting.NewSandboxedState(0)
	require.NotNil(t, L)
	defer cancel()
	defer L.Close()
	for _, name := range []string{"os", "io", "debug", "package"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_DangerousGlobalsNil(t *testing.T) {
	L, cancel := scripting.NewSandboxedState(0)
	defer cancel()
	defer L.Close()
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_SafeLibsAvailable(t *testing.T) {
	L, cancel := scripting.NewSandboxedState(0)
	defer cancel()
	defer L.Close()
	err := L.DoString(`
		local x = math.max(3, 7)
		assert(x == 7, "math.max failed")
		local s = string.upper("slain")
		assert(s == "SLAIN", "string.upper failed")
		local t = {}
		table.insert(t, "dying")
		assert(#t == 1, "table.insert failed")
	`)
	assert.NoError(t, err)
}

func TestNewSandboxedState_InstructionLimitExceeded(t *testing.T) {
	L, cancel := scripting.NewSandboxedState(10)
	defer cancel()
	defer L.Close()
	err := L.DoString(`while true do end`)
	assert.Error(t, err, "expected instruction limit error")
}

func TestNewSandboxedState_DefaultLimit_NormalScriptRuns(t *testing.T) {
	L, cancel := scripting.NewSandboxedState(0)
	defer cancel()
	defer L.Close()
	assert.NoError(t, L.DoString(`local x = 1 + 1`))
}

func TestProperty_InstructionLimitAlwaysErrors(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(t, "limit")
		L, cancel := scripting.NewSandboxedState(limit)
		defer cancel()
		defer L.Close()
		err := L.DoString(`while true do end`)
		if err == nil {
			t.Fatalf("expected error with limit=%d but got nil", limit)
		}
	})
}
