package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.True(t, cfg.SweepEnabled)
	assert.True(t, cfg.BackupEnabled)
	assert.Equal(t, filepath.Join(dataDir, "backups"), cfg.BackupDir)
	assert.Equal(t, 1990, cfg.HistoricalResponsibilityYear)
	assert.InDelta(t, 0.9, cfg.MaxConvergenceSpeed, 1e-12)
	assert.InDelta(t, 0.8, cfg.MaxGiniAdjustment, 1e-12)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SWEEP_ENABLED", "false")
	t.Setenv("MAX_CONVERGENCE_SPEED", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.SweepEnabled)
	assert.InDelta(t, 0.5, cfg.MaxConvergenceSpeed, 1e-12)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{Port: 8080, MaxConvergenceSpeed: 0.9, MaxGiniAdjustment: 0.8}
	require.NoError(t, cfg.Validate())

	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Port = 8080
	cfg.MaxConvergenceSpeed = 1.5
	assert.Error(t, cfg.Validate())

	cfg.MaxConvergenceSpeed = 0.9
	cfg.MaxGiniAdjustment = -0.1
	assert.Error(t, cfg.Validate())
}

func TestDatabasePath(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/data"}
	assert.Equal(t, "/tmp/data/results.db", cfg.DatabasePath("results"))
}
