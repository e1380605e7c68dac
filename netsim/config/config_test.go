package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.ReconciliationEnabled)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.TracingEnabled)
	assert.Equal(t, ":9090", cfg.AdminAddr)
}

func TestLoadFileOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netsim.yaml")
	contents := "reconciliation_enabled: false\nadmin_addr: \":7000\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.False(t, cfg.ReconciliationEnabled)
	assert.Equal(t, ":7000", cfg.AdminAddr)
	// Untouched fields keep their defaults.
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
}

func TestLoadFileMissingFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFileInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
