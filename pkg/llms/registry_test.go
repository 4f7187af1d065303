package llms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socraticlabs/coach/pkg/config"
)

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	assert.Error(t, err)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	provider, err := NewArkProviderFromConfig(&config.BackendConfig{
		Type: config.ProviderTypeArk, Model: "m", APIKey: "k", Host: "http://localhost",
	})
	require.NoError(t, err)

	r.Register("ark", provider)
	got, err := r.Get("ark")
	require.NoError(t, err)
	assert.Equal(t, "m", got.ModelName())
}

func TestNewProviderFromConfigUnsupported(t *testing.T) {
	_, err := NewProviderFromConfig(&config.BackendConfig{Type: "mystery"})
	assert.ErrorContains(t, err, "unsupported provider type")
}

func TestSelectUsesCoachingBackend(t *testing.T) {
	cfg := &config.Config{
		Coaching: config.CoachingConfig{Backend: "gemini"},
		Backends: map[string]*config.BackendConfig{
			"gemini": {Type: config.ProviderTypeGemini, Model: "g", APIKey: "k", Host: "http://localhost"},
		},
	}

	registry, err := NewRegistryFromConfig(cfg)
	require.NoError(t, err)
	defer registry.Close()

	provider, err := Select(cfg, registry)
	require.NoError(t, err)
	assert.Equal(t, "g", provider.ModelName())
}

func TestNewRegistryFromConfigFailsOnMissingKey(t *testing.T) {
	cfg := &config.Config{
		Backends: map[string]*config.BackendConfig{
			"ark": {Type: config.ProviderTypeArk, Model: "m", Host: "http://localhost"},
		},
	}
	_, err := NewRegistryFromConfig(cfg)
	assert.Error(t, err)
}
