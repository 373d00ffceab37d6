package config_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/treasury-engine/config"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := config.LoadServer()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, time.Second, cfg.Tick)
	assert.Equal(t, 1.0, cfg.TimeScale)
	assert.Equal(t, "@every 5m", cfg.Autosave)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Empty(t, cfg.Mode)
}

func TestLoadServer_Environment(t *testing.T) {
	t.Setenv("TREASURY_PORT", "9090")
	t.Setenv("TREASURY_DB", ":memory:")
	t.Setenv("TREASURY_TICK", "250ms")
	t.Setenv("TREASURY_TIME_SCALE", "600")
	t.Setenv("TREASURY_AUTOSAVE", "")
	t.Setenv("TREASURY_LOG_LEVEL", "debug")
	t.Setenv("TREASURY_MODE", "test")

	cfg, err := config.LoadServer()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DB)
	assert.Equal(t, 250*time.Millisecond, cfg.Tick)
	assert.Equal(t, 600.0, cfg.TimeScale)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Equal(t, "test", cfg.Mode)
}

func TestLoadServer_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"not a number", "TREASURY_PORT", "http"},
		{"port range", "TREASURY_PORT", "70000"},
		{"zero tick", "TREASURY_TICK", "0s"},
		{"negative scale", "TREASURY_TIME_SCALE", "-1"},
		{"log level", "TREASURY_LOG_LEVEL", "loud"},
		{"mode", "TREASURY_MODE", "sandbox"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.LoadServer()
			assert.Error(t, err)
		})
	}
}
