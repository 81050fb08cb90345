package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config del servicio. Las variables de entorno llevan prefijo MEDGUARD_,
// p.ej. MEDGUARD_HTTP_PORT, MEDGUARD_DB_DSN.
type Config struct {
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
	AppName  string `envconfig:"APP_NAME" default:"med-dose-guard"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Storage: DSN postgres > path sqlite > in-memory.
	PostgresDSN string `envconfig:"DB_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Auth remota (janus); vacío = modo dev con X-Debug-User-ID.
	AuthBaseURL        string `envconfig:"AUTH_BASE_URL" default:""`
	AuthTimeoutSeconds int    `envconfig:"AUTH_TIMEOUT_SECONDS" default:"5"`

	// plans-features (capabilities premium); vacío = sin resolver.
	PlansBaseURL string `envconfig:"PLANS_BASE_URL" default:""`
	PlansAPIKey  string `envconfig:"PLANS_API_KEY" default:""`

	// Margen antes de marcar un slot como overdue.
	GraceMinutes int `envconfig:"GRACE_MINUTES" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MEDGUARD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid MEDGUARD_HTTP_PORT: %d", c.HTTPPort)
	}
	if c.GraceMinutes <= 0 {
		return fmt.Errorf("invalid MEDGUARD_GRACE_MINUTES: %d", c.GraceMinutes)
	}
	if c.AuthTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid MEDGUARD_AUTH_TIMEOUT_SECONDS: %d", c.AuthTimeoutSeconds)
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func (c *Config) Grace() time.Duration {
	return time.Duration(c.GraceMinutes) * time.Minute
}

func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutSeconds) * time.Second
}
