package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.FallbackModel)
	assert.Equal(t, 3, cfg.Generation.MaxAttempts)
	assert.Equal(t, 70, cfg.Generation.QualityThreshold)
	assert.Equal(t, 75, cfg.Persona.MinScore)
	assert.Equal(t, 5, cfg.Resilience.FailureThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadAppliesFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9090
ai:
  model: "custom-model"
generation:
  max_attempts: 5
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "custom-model", cfg.AI.Model)
	assert.Equal(t, 5, cfg.Generation.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset values still get defaults.
	assert.Equal(t, "gpt-4o-mini", cfg.AI.FallbackModel)
	assert.Equal(t, 70, cfg.Generation.QualityThreshold)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  api_key: \"from-file\"\n"), 0o644))

	t.Setenv("COMPLETION_API_KEY", "from-env")
	t.Setenv("COMPLETION_BASE_URL", "http://localhost:9999/v1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AI.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", cfg.AI.BaseURL)
}
