package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Encounter: EncounterConfig{
			MinCombatants: 2,
		},
		Scripting: ScriptingConfig{
			Enabled:          true,
			InstructionLimit: 1000,
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1, cfg.Encounter.MinCombatants)
	assert.True(t, cfg.Scripting.Enabled)
	assert.Equal(t, 100_000, cfg.Scripting.InstructionLimit)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
encounter:
  min_combatants: 3
scripting:
  enabled: false
  instruction_limit: 500
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Encounter.MinCombatants)
	assert.False(t, cfg.Scripting.Enabled)
	assert.Equal(t, 500, cfg.Scripting.InstructionLimit)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRACKER_LOGGING_LEVEL", "warn")
	t.Setenv("TRACKER_ENCOUNTER_MIN_COMBATANTS", "4")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Encounter.MinCombatants)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encounter:\n  min_combatants: 0\n"), 0644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encounter.min_combatants")
}

func TestLoadFromViper(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("logging.format", "json")
	cfg, err := LoadFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	cfg.Encounter.MinCombatants = 0
	cfg.Scripting.InstructionLimit = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "encounter.min_combatants")
	assert.Contains(t, err.Error(), "scripting.instruction_limit")
}

// Property-based tests

func TestPropertyMinCombatants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(-100, 100).Draw(t, "min_combatants")
		cfg := validConfig()
		cfg.Encounter.MinCombatants = n
		err := cfg.Validate()
		if n >= 1 && err != nil {
			t.Fatalf("valid min_combatants %d rejected: %v", n, err)
		}
		if n < 1 && err == nil {
			t.Fatalf("invalid min_combatants %d accepted", n)
		}
	})
}
