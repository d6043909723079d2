package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is read once at startup. ThinkScale stretches AI thinking pauses;
// 0 makes AI players answer at once.
type Config struct {
	Port            string        `mapstructure:"PORT"`
	DefaultProvider string        `mapstructure:"DEFAULT_PROVIDER"`
	DefaultModel    string        `mapstructure:"DEFAULT_MODEL"`
	SystemPrompt    string        `mapstructure:"SYSTEM_PROMPT"`
	OpenAIKey       string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `mapstructure:"OPENAI_BASE_URL"`
	OllamaHost      string        `mapstructure:"OLLAMA_HOST"`
	AITimeout       time.Duration `mapstructure:"AI_TIMEOUT"`
	ThinkScale      float64       `mapstructure:"AI_THINK_SCALE"`

	PersonalitiesFile string `mapstructure:"PERSONALITIES_FILE"`

	DatabaseURL string        `mapstructure:"DATABASE_URL"`
	AuditDB     string        `mapstructure:"AUDIT_DB"`
	AuditMaxAge time.Duration `mapstructure:"AUDIT_MAX_AGE"`

	ExportEnabled bool   `mapstructure:"EXPORT_ENABLED"`
	ExportFile    string `mapstructure:"EXPORT_FILE"`

	TickInterval    time.Duration `mapstructure:"TICK_INTERVAL"`
	CleanupInterval time.Duration `mapstructure:"CLEANUP_INTERVAL"`
	AIMaxInactive   time.Duration `mapstructure:"AI_MAX_INACTIVE"`
	LobbyMaxAge     time.Duration `mapstructure:"LOBBY_MAX_AGE"`
}

var defaults = map[string]any{
	"PORT":             "8080",
	"DEFAULT_PROVIDER": "openai",
	"DEFAULT_MODEL":    "gpt-4o-mini",
	"SYSTEM_PROMPT":    "",
	"OPENAI_API_KEY":   "",
	"OPENAI_BASE_URL":  "",
	"OLLAMA_HOST":      "http://localhost:11434",
	"AI_TIMEOUT":       "8s",
	"AI_THINK_SCALE":   1.0,
	"DATABASE_URL":     "",
	"AUDIT_DB":         "",
	"AUDIT_MAX_AGE":    "168h",
	"EXPORT_ENABLED":   true,
	"EXPORT_FILE":      "./memebattles-results.txt",
	"TICK_INTERVAL":    "1s",
	"CLEANUP_INTERVAL": "5m",
	"AI_MAX_INACTIVE":  "30m",
	"LOBBY_MAX_AGE":    "24h",

	"PERSONALITIES_FILE": "",
}

// FromEnv reads the configuration from the environment and an optional .env
// file in the working directory. Environment variables win.
func FromEnv() (Config, error) {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("could not read .env file")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}
