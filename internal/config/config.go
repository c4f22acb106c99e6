package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "USER_CONFIG"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "user-config.db"
	defaultLogLevel        = "info"
	defaultPlatformAPIURL  = "https://api.twitch.tv"
	defaultPlatformAuthURL = "https://id.twitch.tv"
	defaultRequestTimeout  = 10 * time.Second
)

// AppConfig captures runtime configuration for the stream-config service.
// It is built once at process start and passed explicitly to every component.
type AppConfig struct {
	HTTPAddress      string
	DatabasePath     string
	LogLevel         string
	AuthURL          string
	PlatformAPIURL   string
	PlatformAuthURL  string
	PlatformClientID string
	RequestTimeout   time.Duration
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
	configViper.SetDefault("platform.api_url", defaultPlatformAPIURL)
	configViper.SetDefault("platform.auth_url", defaultPlatformAuthURL)
	configViper.SetDefault("platform.request_timeout", defaultRequestTimeout)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		AuthURL:          configViper.GetString("auth.url"),
		PlatformAPIURL:   configViper.GetString("platform.api_url"),
		PlatformAuthURL:  configViper.GetString("platform.auth_url"),
		PlatformClientID: configViper.GetString("platform.client_id"),
		RequestTimeout:   configViper.GetDuration("platform.request_timeout"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.AuthURL) == "" {
		return fmt.Errorf("auth.url is required")
	}
	if strings.TrimSpace(c.PlatformClientID) == "" {
		return fmt.Errorf("platform.client_id is required")
	}
	if strings.TrimSpace(c.PlatformAPIURL) == "" {
		return fmt.Errorf("platform.api_url is required")
	}
	if strings.TrimSpace(c.PlatformAuthURL) == "" {
		return fmt.Errorf("platform.auth_url is required")
	}
	return nil
}
