package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the notifier.
// Tags use mapstructure for Viper unmarshalling; every key can be overridden
// through an MDALERT_-prefixed environment variable.
type Config struct {
	// OIDC provider and client settings.
	WellKnownURL string `mapstructure:"WELL_KNOWN_URL"`
	ClientID     string `mapstructure:"CLIENT_ID"`
	ClientSecret string `mapstructure:"CLIENT_SECRET"`
	RedirectURI  string `mapstructure:"REDIRECT_URI"`
	Scopes       string `mapstructure:"SCOPES"`

	// Loopback listener that receives the OAuth redirect.
	CallbackAddr string `mapstructure:"CALLBACK_ADDR"`
	CallbackPath string `mapstructure:"CALLBACK_PATH"`

	// Monitoring backend and UI.
	AlertsURL   string `mapstructure:"ALERTS_URL"`
	MonitorsURL string `mapstructure:"MONITORS_URL"`

	PollIntervalSec int `mapstructure:"POLL_INTERVAL_SEC"`
	HTTPTimeoutSec  int `mapstructure:"HTTP_TIMEOUT_SEC"`

	// Secure-storage namespace. Overridable so tests and side-by-side
	// installations don't share keychain entries.
	KeyringService string `mapstructure:"KEYRING_SERVICE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
}

// PollInterval returns the alert polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// HTTPTimeout returns the per-request timeout for all outbound HTTP calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// Load reads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.mdalert")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MDALERT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("WELL_KNOWN_URL", "https://id.oglimmer.de/realms/status-tacos/.well-known/openid-configuration")
	v.SetDefault("CLIENT_ID", "notifier-app")
	v.SetDefault("CLIENT_SECRET", "")
	v.SetDefault("REDIRECT_URI", "http://localhost:3000/callback")
	v.SetDefault("SCOPES", "openid profile email")
	v.SetDefault("CALLBACK_ADDR", "127.0.0.1:3000")
	v.SetDefault("CALLBACK_PATH", "/callback")
	v.SetDefault("ALERTS_URL", "http://localhost:8080/api/v1/alerts")
	v.SetDefault("MONITORS_URL", "http://localhost:5173/monitors")
	v.SetDefault("POLL_INTERVAL_SEC", 5)
	v.SetDefault("HTTP_TIMEOUT_SEC", 10)
	v.SetDefault("KEYRING_SERVICE", "mdalert")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything has a default or an env
		// binding. Anything else (malformed file, permissions) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
