// Package config loads spren's settings from defaults, an optional YAML file
// and SPREN_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/stevehiehn/spren/internal/retry"
	"github.com/stevehiehn/spren/internal/shell"
)

type Config struct {
	AI        AI           `mapstructure:"ai" yaml:"ai"`
	Security  Security     `mapstructure:"security" yaml:"security"`
	Retry     retry.Config `mapstructure:"retry" yaml:"retry"`
	Shell     Shell        `mapstructure:"shell" yaml:"shell"`
	Logging   Logging      `mapstructure:"logging" yaml:"logging"`
	History   History      `mapstructure:"history" yaml:"history"`
	Artifacts Artifacts    `mapstructure:"artifacts" yaml:"artifacts"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

// AI selects and configures the model provider.
type AI struct {
	Provider        string        `mapstructure:"provider" yaml:"provider"` // anthropic or openai
	Model           string        `mapstructure:"model" yaml:"model"`
	MaxTokens       int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	APIURL          string        `mapstructure:"api_url" yaml:"api_url,omitempty"` // base URL override
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key,omitempty"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key" yaml:"openai_api_key,omitempty"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Diagnose        bool          `mapstructure:"diagnose" yaml:"diagnose"` // explain failed steps
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// APIKey returns the key for the selected provider.
func (a AI) APIKey() string {
	if a.Provider == ProviderOpenAI {
		return a.OpenAIAPIKey
	}
	return a.AnthropicAPIKey
}

// ModelName returns Model, or the provider's default when unset.
func (a AI) ModelName() string {
	if a.Model != "" {
		return a.Model
	}
	if a.Provider == ProviderOpenAI {
		return "gpt-4o"
	}
	return "claude-3-5-sonnet-latest"
}

type Security struct {
	RequireConfirmation bool     `mapstructure:"require_confirmation" yaml:"require_confirmation"`
	DangerousCommands   []string `mapstructure:"dangerous_commands" yaml:"dangerous_commands"`
}

type Shell struct {
	Profile string `mapstructure:"profile" yaml:"profile"` // auto, posix, cmd or powershell
}

type Logging struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // console or json
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

type History struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"` // empty uses the user data dir
}

type Artifacts struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("ai.provider: unknown provider %q (want anthropic or openai)", c.AI.Provider)
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("ai.max_tokens must be positive, got %d", c.AI.MaxTokens)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive, got %s", c.AI.Timeout)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if _, err := shell.Parse(c.Shell.Profile); err != nil {
		return fmt.Errorf("shell.profile: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q (want console or json)", c.Logging.Format)
	}
	return nil
}
