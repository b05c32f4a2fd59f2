package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.CurrentProfile)

	p, err := cfg.GetProfile("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8086", p.ServerURL)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.SetProfile("staging", "http://hunt.staging.internal:8086")
	cfg.CurrentProfile = "staging"
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", reloaded.CurrentProfile)

	p, err := reloaded.GetProfile("staging")
	require.NoError(t, err)
	assert.Equal(t, "http://hunt.staging.internal:8086", p.ServerURL)
}

func TestGetProfileUnknown(t *testing.T) {
	cfg := Default()
	_, err := cfg.GetProfile("ghost")
	assert.Error(t, err)
}
