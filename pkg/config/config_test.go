package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.BindHost, cfg.Server.BindHost)
	assert.Equal(t, 6, cfg.Worker.Count)
}

func TestLoadParsesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixelforge.yaml")
	yamlBody := `
server:
  bind_host: "10.0.0.5"
  api_base: "/api/v2"
worker:
  count: 12
  queue_capacity: 500
storage:
  data_dir: "/var/lib/pixelforge"
  allowed_ref_roots:
    - "/var/lib/pixelforge/refs"
providers:
  - name: gemini
    enabled: true
    max_retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Server.BindHost)
	assert.Equal(t, "/api/v2", cfg.Server.APIBase)
	assert.Equal(t, 12, cfg.Worker.Count)
	assert.Equal(t, 500, cfg.Worker.QueueCapacity)
	assert.Equal(t, "/var/lib/pixelforge", cfg.Storage.DataDir)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "gemini", cfg.Providers[0].Name)
}

func TestLoadAppliesServerHostEnvOverride(t *testing.T) {
	t.Setenv("SERVER_HOST", "192.168.1.1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", cfg.Server.BindHost)
}

func TestLoadAppliesContainerEnvOverride(t *testing.T) {
	t.Setenv("PIXELFORGE_CONTAINER", "1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.BindHost)
}
