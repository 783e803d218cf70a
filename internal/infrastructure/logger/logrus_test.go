package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogrusLogger_DerivedLoggerSharesRoot(t *testing.T) {
	cfg := NewConfig(Instance{Service: "test"}, nil)
	cfg.Format = "json"
	log := NewLogrusLogger(cfg)

	var buf bytes.Buffer
	child := log.WithField("component", "hub")
	child.SetOutput(&buf)
	child.SetLevel(LevelWarn)

	log.Info("dropped")
	child.Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "hub", entry["component"])
	assert.Equal(t, "test", entry["service"])
}

func TestNewConfig_ExtraFieldsKeepIdentity(t *testing.T) {
	cfg := NewConfig(Instance{Service: "hazard", Version: "1.4.0", Node: "edge-1"}, map[string]string{
		"service": "spoofed",
		"region":  "south",
	})

	assert.Equal(t, "hazard", cfg.Fields["service"])
	assert.Equal(t, "1.4.0", cfg.Fields["version"])
	assert.Equal(t, "edge-1", cfg.Fields["node"])
	assert.Equal(t, "south", cfg.Fields["region"])
	assert.NotEmpty(t, cfg.Fields["pid"])
	assert.Equal(t, DefaultRotation, cfg.Rotation)
	assert.Equal(t, LevelInfo, cfg.Level)
}
