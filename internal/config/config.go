package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Claude   ClaudeConfig   `mapstructure:"claude"`
	Industry IndustryConfig `mapstructure:"industry"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Export   ExportConfig   `mapstructure:"export"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ClaudeConfig holds the external text-classifier configuration
type ClaudeConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestsPerMin int           `mapstructure:"requests_per_min"`
	Burst          int           `mapstructure:"burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BatchSize      int           `mapstructure:"batch_size"`
}

// IndustryConfig holds the industry reference-source configuration
type IndustryConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	Workers        int           `mapstructure:"workers"`
	Enabled        bool          `mapstructure:"enabled"`
}

// TelegramConfig holds Telegram digest-delivery configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ExportConfig holds flat-file export configuration
type ExportConfig struct {
	Dir          string `mapstructure:"dir"`
	TaxonomyPath string `mapstructure:"taxonomy_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("THEMERADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Claude defaults. api_key defaults to empty so the key is known
	// to viper and THEMERADAR_CLAUDE_API_KEY can supply it.
	v.SetDefault("claude.api_key", "")
	v.SetDefault("claude.model", "claude-sonnet-4-20250514")
	v.SetDefault("claude.max_tokens", 4096)
	v.SetDefault("claude.requests_per_min", 50)
	v.SetDefault("claude.burst", 5)
	v.SetDefault("claude.timeout", "120s")
	v.SetDefault("claude.batch_size", 35)

	// Industry defaults
	v.SetDefault("industry.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("industry.timeout", "10s")
	v.SetDefault("industry.max_retries", 2)
	v.SetDefault("industry.retry_delay_base", "1s")
	v.SetDefault("industry.workers", 2)
	v.SetDefault("industry.enabled", true)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/themeradar.db")

	// Export defaults
	v.SetDefault("export.dir", "./data/exports")
	v.SetDefault("export.taxonomy_path", "configs/taxonomy.yaml")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Claude.APIKey == "" {
		return fmt.Errorf("claude.api_key is required")
	}
	if c.Claude.Model == "" {
		return fmt.Errorf("claude.model is required")
	}
	if c.Claude.MaxTokens < 256 {
		return fmt.Errorf("claude.max_tokens must be at least 256")
	}
	if c.Claude.RequestsPerMin < 1 {
		return fmt.Errorf("claude.requests_per_min must be at least 1")
	}
	if c.Claude.Burst < 1 {
		return fmt.Errorf("claude.burst must be at least 1")
	}
	if c.Claude.BatchSize < 1 || c.Claude.BatchSize > 100 {
		return fmt.Errorf("claude.batch_size must be between 1 and 100")
	}

	if c.Industry.Enabled {
		if c.Industry.BaseURL == "" {
			return fmt.Errorf("industry.base_url is required when industry is enabled")
		}
		if c.Industry.Workers < 1 {
			return fmt.Errorf("industry.workers must be at least 1")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
