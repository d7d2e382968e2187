package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config describes the council document loaded from YAML/JSON and ENV.
type Config struct {
	Providers   map[string]ProviderConfig `mapstructure:"providers"`
	Roles       []RoleConfig              `mapstructure:"roles"`
	Synthesizer RoleConfig                `mapstructure:"synthesizer"`
	Runtime     RuntimeConfig             `mapstructure:"runtime"`
	Logging     LoggingConfig             `mapstructure:"logging"`
	Server      ServerConfig              `mapstructure:"server"`

	// BaseDir is the directory of the loaded config file; prompt files resolve against it.
	BaseDir string `mapstructure:"-"`
}

// ProviderConfig represents an LLM endpoint such as OpenAI, OpenRouter, or a local Ollama.
type ProviderConfig struct {
	Type      string `mapstructure:"type"`        // openai (any compatible gateway) or ollama
	BaseURL   string `mapstructure:"base_url"`    // API base URL, /chat/completions is appended
	Model     string `mapstructure:"model"`       // model identifier sent with every call
	APIKeyEnv string `mapstructure:"api_key_env"` // env var holding the bearer credential
}

// RoleConfig is a council member: a name, a provider reference and a system prompt file.
type RoleConfig struct {
	Name       string `mapstructure:"name"`
	Provider   string `mapstructure:"provider"`
	PromptFile string `mapstructure:"prompt_file"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// Load reads configuration from the provided path or defaults to configs/council.yaml.
// Environment variables override file values (prefix: COUNCIL_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COUNCIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("council")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("council.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		if abs, err := filepath.Abs(used); err == nil {
			used = abs
		}
		cfg.BaseDir = filepath.Dir(used)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("runtime.parallel_workers", DefaultParallelWorkers)
	v.SetDefault("runtime.retries", DefaultRetries)
	v.SetDefault("runtime.retry_backoff_sec", DefaultRetryBackoffSec)
	v.SetDefault("runtime.timeout_sec", DefaultTimeoutSec)
	v.SetDefault("runtime.temperature", DefaultTemperature)
	v.SetDefault("runtime.max_tokens", DefaultMaxTokens)
	v.SetDefault("runtime.allow_mock_fallback", false)
	v.SetDefault("runtime.ca_file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// viper folds map keys to lower case, so provider references are folded too.
func (c *Config) normalize() {
	for i := range c.Roles {
		c.Roles[i].Provider = strings.ToLower(strings.TrimSpace(c.Roles[i].Provider))
	}
	c.Synthesizer.Provider = strings.ToLower(strings.TrimSpace(c.Synthesizer.Provider))
	for name, p := range c.Providers {
		if strings.TrimSpace(p.Type) == "" {
			p.Type = "openai"
		}
		p.Type = strings.ToLower(p.Type)
		c.Providers[name] = p
	}
}

// Validate performs sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}
	if len(c.Roles) == 0 {
		return errors.New("at least one role must be configured")
	}

	for name, p := range c.Providers {
		switch p.Type {
		case "", "openai", "ollama":
		default:
			return fmt.Errorf("provider %q has unknown type %q", name, p.Type)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("provider %q must define model", name)
		}
		if p.Type != "ollama" && strings.TrimSpace(p.BaseURL) == "" {
			return fmt.Errorf("provider %q must define base_url", name)
		}
	}

	for i, r := range c.Roles {
		if err := c.validateRole(r); err != nil {
			return fmt.Errorf("roles[%d]: %w", i, err)
		}
	}
	if err := c.validateRole(c.Synthesizer); err != nil {
		return fmt.Errorf("synthesizer: %w", err)
	}

	if err := c.Runtime.Validate(); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}

func (c *Config) validateRole(r RoleConfig) error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(r.PromptFile) == "" {
		return fmt.Errorf("role %q must define prompt_file", r.Name)
	}
	return nil
}

// UnknownProviders lists roles (synthesizer included) whose provider reference
// has no entry. Such roles still run; their slot carries the error.
func (c *Config) UnknownProviders() []string {
	var out []string
	for _, r := range append(append([]RoleConfig(nil), c.Roles...), c.Synthesizer) {
		if _, ok := c.Providers[r.Provider]; !ok {
			out = append(out, r.Name)
		}
	}
	return out
}

// PromptPath resolves a role's prompt file against the config directory.
func (c *Config) PromptPath(r RoleConfig) string {
	if filepath.IsAbs(r.PromptFile) || c.BaseDir == "" {
		return r.PromptFile
	}
	return filepath.Join(c.BaseDir, r.PromptFile)
}
