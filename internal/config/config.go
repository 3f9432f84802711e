package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                  = "QUILLBOARD"
	defaultHTTPAddress         = "0.0.0.0:8080"
	defaultDatabasePath        = "quillboard.db"
	defaultLogLevel            = "info"
	defaultRetentionDays       = 90
	defaultWriteTimeoutSeconds = 10
)

// AppConfig captures runtime configuration for the room server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string
	Retention    time.Duration
	WriteTimeout time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("room.retention_days", defaultRetentionDays)
	configViper.SetDefault("room.write_timeout_seconds", defaultWriteTimeoutSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:  configViper.GetString("http.address"),
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),
		Retention:    time.Duration(configViper.GetInt("room.retention_days")) * 24 * time.Hour,
		WriteTimeout: time.Duration(configViper.GetInt("room.write_timeout_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("room.retention_days must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("room.write_timeout_seconds must be positive")
	}
	return nil
}
