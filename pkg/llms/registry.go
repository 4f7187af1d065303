package llms

import (
	"fmt"
	"sync"

	"github.com/socraticlabs/coach/pkg/config"
)

// Registry holds named providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under a name, replacing any previous entry.
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return provider, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Close closes all registered providers, returning the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, provider := range r.providers {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing provider %q: %w", name, err)
		}
	}
	r.providers = make(map[string]Provider)
	return firstErr
}

// NewProviderFromConfig builds a provider for a backend config.
func NewProviderFromConfig(cfg *config.BackendConfig) (Provider, error) {
	switch cfg.Type {
	case config.ProviderTypeArk:
		return NewArkProviderFromConfig(cfg)
	case config.ProviderTypeGemini:
		return NewGeminiProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}

// NewRegistryFromConfig builds providers for every configured backend.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()
	for name, backend := range cfg.Backends {
		provider, err := NewProviderFromConfig(backend)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("backend %q: %w", name, err)
		}
		registry.Register(name, provider)
	}
	return registry, nil
}

// Select returns the provider named by the coaching backend setting.
func Select(cfg *config.Config, registry *Registry) (Provider, error) {
	return registry.Get(cfg.Coaching.Backend)
}
