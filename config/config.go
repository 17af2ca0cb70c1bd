package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the helpdesk client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// APIBaseURL is the protected API origin. Bearer tokens are attached
	// only to requests targeting this host.
	APIBaseURL string `env:"HELPDESK_API_URL" envDefault:"http://localhost:8080"`

	// One-shot request behaviour.
	RequestTimeout time.Duration `env:"HELPDESK_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxRetries     int           `env:"HELPDESK_MAX_RETRIES" envDefault:"3"`

	// RefreshTimeout bounds a token refresh. Callers queued on an in-flight
	// refresh fail with a session-expired error when it elapses.
	RefreshTimeout time.Duration `env:"HELPDESK_REFRESH_TIMEOUT" envDefault:"10s"`

	// Notification stream.
	StreamPath     string        `env:"HELPDESK_STREAM_PATH" envDefault:"/api/notifications/stream"`
	ReconnectDelay time.Duration `env:"HELPDESK_RECONNECT_DELAY" envDefault:"1s"`

	// Circuit breaker on the ticket API.
	BreakerEnabled bool `env:"HELPDESK_BREAKER_ENABLED" envDefault:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("HELPDESK_API_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("HELPDESK_RECONNECT_DELAY must be positive, got %s", c.ReconnectDelay)
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("HELPDESK_REFRESH_TIMEOUT must be positive, got %s", c.RefreshTimeout)
	}
	return nil
}
