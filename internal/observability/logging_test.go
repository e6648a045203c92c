package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/initiative/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "xml"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLoggerTo_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerTo(config.LoggingConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Info("turn advanced", zap.String("actor", "Goblin"), zap.Int("round", 2))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "turn advanced", entry["msg"])
	assert.Equal(t, "Goblin", entry["actor"])
	assert.EqualValues(t, 2, entry["round"])
}

func TestNewLoggerTo_LevelFilters(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		var buf bytes.Buffer
		logger, err := NewLoggerTo(config.LoggingConfig{Level: level, Format: "json"}, zapcore.AddSync(&buf))
		require.NoError(t, err, "level %q should be valid", level)
		logger.Debug("debug entry")
		require.NoError(t, logger.Sync())
		if level == "debug" {
			assert.Contains(t, buf.String(), "debug entry")
		} else {
			assert.Empty(t, buf.String(), "level %q must drop debug entries", level)
		}
	}
}
