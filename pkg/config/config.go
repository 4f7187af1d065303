// Package config loads and validates the coach configuration.
//
// Configuration comes from a YAML file with ${VAR} / ${VAR:-default}
// expansion against the process environment. A .env file next to the
// working directory is loaded first, so API keys never need to live in the
// config file itself.
package config

import (
	"fmt"
	"os"
)

// Provider type tags for generation backends.
const (
	ProviderTypeArk    = "ark"
	ProviderTypeGemini = "gemini"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig               `yaml:"server"`
	Logging  LoggingConfig              `yaml:"logging"`
	Coaching CoachingConfig             `yaml:"coaching"`
	Content  ContentConfig              `yaml:"content"`
	Backends map[string]*BackendConfig `yaml:"backends"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// CoachingConfig configures the coaching module.
type CoachingConfig struct {
	// Backend names the entry in Backends that services coaching requests.
	Backend string `yaml:"backend"`

	// PromptPath optionally overrides the embedded tutor prompt template.
	PromptPath string `yaml:"prompt_path"`
}

// ContentConfig configures the question/article store.
type ContentConfig struct {
	// DatabasePath is the SQLite file. Empty means the in-memory store.
	DatabasePath string `yaml:"database_path"`
}

// BackendConfig configures one generation backend.
type BackendConfig struct {
	// Type selects the wire protocol: ark (OpenAI-compatible) or gemini.
	Type string `yaml:"type"`

	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`

	// Host overrides the default API endpoint.
	Host string `yaml:"host"`

	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`

	// Timeout bounds one generation call, in seconds.
	Timeout    int `yaml:"timeout"`
	MaxRetries int `yaml:"max_retries"`
	RetryDelay int `yaml:"retry_delay"`
}

// SetDefaults fills unset fields. Backends absent from the file are created
// with their conventional defaults so zero-config serve works as long as
// the API key environment variables are set.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Coaching.Backend == "" {
		c.Coaching.Backend = envOr("COACHING_BACKEND", "gemini")
	}
	if c.Backends == nil {
		c.Backends = make(map[string]*BackendConfig)
	}
	if _, ok := c.Backends["gemini"]; !ok {
		c.Backends["gemini"] = &BackendConfig{Type: ProviderTypeGemini}
	}
	if _, ok := c.Backends["ark"]; !ok {
		c.Backends["ark"] = &BackendConfig{Type: ProviderTypeArk}
	}
	for name, b := range c.Backends {
		b.setDefaults(name)
	}
}

func (b *BackendConfig) setDefaults(name string) {
	if b.Type == "" {
		b.Type = name
	}
	switch b.Type {
	case ProviderTypeGemini:
		if b.Model == "" {
			b.Model = "gemini-2.0-flash"
		}
		if b.Host == "" {
			b.Host = "https://generativelanguage.googleapis.com"
		}
		if b.APIKey == "" {
			b.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	case ProviderTypeArk:
		if b.Model == "" {
			b.Model = envOr("ARK_MODEL", "doubao-seed-1-6-250615")
		}
		if b.Host == "" {
			b.Host = envOr("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		}
		if b.APIKey == "" {
			b.APIKey = os.Getenv("ARK_API_KEY")
		}
	}
	if b.Temperature == nil {
		t := 0.7
		b.Temperature = &t
	}
	if b.MaxTokens == 0 {
		b.MaxTokens = 2048
	}
	if b.Timeout == 0 {
		b.Timeout = 60
	}
	if b.RetryDelay == 0 {
		b.RetryDelay = 1
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if _, ok := c.Backends[c.Coaching.Backend]; !ok {
		return fmt.Errorf("coaching backend %q is not configured", c.Coaching.Backend)
	}
	for name, b := range c.Backends {
		switch b.Type {
		case ProviderTypeArk, ProviderTypeGemini:
		default:
			return fmt.Errorf("backend %q: unsupported type %q (supported: ark, gemini)", name, b.Type)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
