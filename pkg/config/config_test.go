package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.Contains(t, cfg.Backends, "gemini")
	require.Contains(t, cfg.Backends, "ark")
	assert.Equal(t, "gemini-2.0-flash", cfg.Backends["gemini"].Model)
	assert.Equal(t, 2048, cfg.Backends["gemini"].MaxTokens)
	assert.Equal(t, 60, cfg.Backends["gemini"].Timeout)
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_COACH_KEY", "secret-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9001
coaching:
  backend: ark
backends:
  ark:
    type: ark
    api_key: ${TEST_COACH_KEY}
    model: ${TEST_COACH_MODEL:-doubao-custom}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "ark", cfg.Coaching.Backend)
	assert.Equal(t, "secret-key", cfg.Backends["ark"].APIKey)
	assert.Equal(t, "doubao-custom", cfg.Backends["ark"].Model)
}

func TestValidateUnknownCoachingBackend(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Coaching.Backend = "missing"
	assert.Error(t, cfg.Validate())
}

func TestValidateUnsupportedBackendType(t *testing.T) {
	cfg := &Config{
		Backends: map[string]*BackendConfig{
			"weird": {Type: "carrier-pigeon"},
		},
	}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate())
}

func TestValidatePortRange(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestBackendTypeDefaultsFromName(t *testing.T) {
	cfg := &Config{
		Backends: map[string]*BackendConfig{
			"gemini": {Model: "custom-model"},
		},
	}
	cfg.SetDefaults()
	assert.Equal(t, ProviderTypeGemini, cfg.Backends["gemini"].Type)
	assert.Equal(t, "custom-model", cfg.Backends["gemini"].Model)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("COACH_SET_VAR", "value")

	assert.Equal(t, "value", expandEnvVars("${COACH_SET_VAR}"))
	assert.Equal(t, "", expandEnvVars("${COACH_UNSET_VAR_XYZ}"))
	assert.Equal(t, "fallback", expandEnvVars("${COACH_UNSET_VAR_XYZ:-fallback}"))
	assert.Equal(t, "value", expandEnvVars("${COACH_SET_VAR:-fallback}"))
	assert.Equal(t, "plain text", expandEnvVars("plain text"))
}
