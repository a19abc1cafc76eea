package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
listen:
  mode: http
  addr: ":9090"

redis:
  addr: "127.0.0.1:6379"
  password: ${TEST_REDIS_PASSWORD}
  publish_channel: out
  subscribe_channel: in
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("TEST_REDIS_PASSWORD", "my-secret-password")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Listen.Mode)
	assert.Equal(t, ":9090", cfg.Listen.Addr)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, "my-secret-password", cfg.Redis.Password)
	assert.Equal(t, "out", cfg.Redis.Publish)
	assert.Equal(t, "in", cfg.Redis.Subscribe)
}

func TestLoadEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
listen:
  mode: stdio
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("KKRPC_LISTEN_MODE", "redis")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Listen.Mode)
}

func TestLoadDefaultsToStdio(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("redis:\n  addr: localhost:6379\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "stdio", cfg.Listen.Mode)
}
