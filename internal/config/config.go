package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config carries every tunable that is not a per-run flag. Values resolve as
// flags > environment (TRANSLATOR_*) > config.yml > defaults. The API
// credential is deliberately not here; it comes from ANTHROPIC_API_KEY only.
type Config struct {
	API struct {
		BaseURL        string `mapstructure:"base_url"`
		Model          string `mapstructure:"model"`
		MaxTokens      int    `mapstructure:"max_tokens"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"api"`
	Retry struct {
		MaxAttempts     int `mapstructure:"max_attempts"`
		MinDelaySeconds int `mapstructure:"min_delay_seconds"`
		MaxDelaySeconds int `mapstructure:"max_delay_seconds"`
	} `mapstructure:"retry"`
	Defaults struct {
		TargetLanguage string `mapstructure:"target_language"`
		CheckpointPath string `mapstructure:"checkpoint_path"`
		Workers        int    `mapstructure:"workers"`
	} `mapstructure:"defaults"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("TRANSLATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("api.base_url", "https://api.anthropic.com")
	viper.SetDefault("api.model", "claude-sonnet-4-20250514")
	viper.SetDefault("api.max_tokens", 8192)
	viper.SetDefault("api.timeout_seconds", 300)
	viper.SetDefault("retry.max_attempts", 6)
	viper.SetDefault("retry.min_delay_seconds", 1)
	viper.SetDefault("retry.max_delay_seconds", 60)
	viper.SetDefault("defaults.target_language", "English")
	viper.SetDefault("defaults.checkpoint_path", "translations.json")
	viper.SetDefault("defaults.workers", 1)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
