package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when neither the config file nor the environment sets a value.
const (
	DefaultAPIURL         = "http://localhost:3000"
	DefaultSessionDBPath  = "./session_data"
	DefaultLogLevel       = "info"
	DefaultPreviewTimeout = 30 * time.Second
)

// ErrMissingBotToken is returned when TELEGRAM_BOT_TOKEN is not configured.
var ErrMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN is not set")

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	// APIURL is the base URL of the WatchPoint API server.
	APIURL           string        `mapstructure:"API_URL"`
	SessionDBPath    string        `mapstructure:"SESSION_DB_PATH"`
	TelegramBotToken string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	PreviewTimeout   time.Duration `mapstructure:"PREVIEW_TIMEOUT"`
}

// LoadConfig reads configuration from path/config.yaml and the environment.
// Environment variables win over the file. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("API_URL", DefaultAPIURL)
	v.SetDefault("SESSION_DB_PATH", DefaultSessionDBPath)
	v.SetDefault("LOG_LEVEL", DefaultLogLevel)
	v.SetDefault("PREVIEW_TIMEOUT", DefaultPreviewTimeout)
	// Unmarshal only sees env-only keys that viper already knows about.
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.TelegramBotToken == "" {
		return Config{}, ErrMissingBotToken
	}
	if cfg.PreviewTimeout <= 0 {
		cfg.PreviewTimeout = DefaultPreviewTimeout
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return cfg, nil
}
