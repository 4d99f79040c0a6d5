package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	WebhookURL     string        `mapstructure:"WEBHOOK_URL"`
	WebhookToken   string        `mapstructure:"WEBHOOK_TOKEN"`
	WebhookTimeout time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`
	HomeLat        float64       `mapstructure:"HOME_LAT"`
	HomeLon        float64       `mapstructure:"HOME_LON"`
	HistorySize    int           `mapstructure:"HISTORY_SIZE"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	LogFormat      string        `mapstructure:"LOG_FORMAT"`
}

// ListenAddr binds every interface on the configured port.
func (c Config) ListenAddr() string {
	return "0.0.0.0:" + c.Port
}

// Load reads settings from the environment. A .env file in the working
// directory is optional; real environment variables take precedence. Values
// that cannot be decoded into their field type are reported as an error.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "4444")
	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("WEBHOOK_TOKEN", "")
	v.SetDefault("WEBHOOK_TIMEOUT", "5s")
	v.SetDefault("HOME_LAT", -26.3044)
	v.SetDefault("HOME_LON", -48.8487)
	v.SetDefault("HISTORY_SIZE", 100)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
