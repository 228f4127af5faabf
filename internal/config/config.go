package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config carries every environment-driven setting. It is decoded once at
// startup and handed to constructors; nothing below cmd/ reads env vars.
type Config struct {
	WebhookBaseURL    string        `env:"WEBHOOK_BASE_URL,default=http://localhost:5678/webhook"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT,default=2m"`
	ErrorTTL          time.Duration `env:"ERROR_TTL,default=10s"`
	BulkRatePerSecond float64       `env:"BULK_RATE_PER_SECOND,default=0"`
	ScheduleInterval  time.Duration `env:"SCHEDULE_INTERVAL,default=24h"`
	ScheduleCron      string        `env:"SCHEDULE_CRON"`
	PreferencesPath   string        `env:"PREFERENCES_PATH,default=.coloringbook/dark_mode"`
	Port              string        `env:"PORT,default=8888"`
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		WebhookBaseURL:   "http://localhost:5678/webhook",
		WebhookTimeout:   2 * time.Minute,
		ErrorTTL:         10 * time.Second,
		ScheduleInterval: 24 * time.Hour,
		PreferencesPath:  ".coloringbook/dark_mode",
		Port:             "8888",
	}
}

// Load decodes the process environment into a Config.
func Load() (Config, error) {
	cfg := Default()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("failed to decode environment: %w", err)
	}
	cfg.WebhookBaseURL = strings.TrimRight(cfg.WebhookBaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the controllers cannot run with.
func (c Config) Validate() error {
	if c.WebhookBaseURL == "" {
		return errors.New("WEBHOOK_BASE_URL must not be empty")
	}
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be positive, got %s", c.WebhookTimeout)
	}
	if c.ErrorTTL < 0 {
		return fmt.Errorf("ERROR_TTL must not be negative, got %s", c.ErrorTTL)
	}
	if c.BulkRatePerSecond < 0 {
		return fmt.Errorf("BULK_RATE_PER_SECOND must not be negative, got %v", c.BulkRatePerSecond)
	}
	if c.ScheduleCron == "" && c.ScheduleInterval <= 0 {
		return fmt.Errorf("SCHEDULE_INTERVAL must be positive, got %s", c.ScheduleInterval)
	}
	return nil
}
