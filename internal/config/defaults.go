package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/stevehiehn/spren/internal/artifact"
)

// setDefaults registers every key so environment variables can override
// keys that appear in no file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", ProviderAnthropic)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.max_tokens", 4000)
	v.SetDefault("ai.api_url", "")
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.openai_api_key", "")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.diagnose", true)

	v.SetDefault("security.require_confirmation", true)
	v.SetDefault("security.dangerous_commands", []string{"sudo"})

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_delay", time.Second)
	v.SetDefault("retry.max_delay", 10*time.Second)

	v.SetDefault("shell.profile", "auto")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.dir", artifact.DefaultRoot)
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// Defaults always decode.
	_ = v.Unmarshal(&c)
	return &c
}
