package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minSessionSecretLength = 32

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	SessionTTL              time.Duration `env:"SESSION_TTL" default:"168h"` // 7 days
	ProfileBootstrapTimeout time.Duration `env:"PROFILE_BOOTSTRAP_TIMEOUT" default:"8s"`
	ProfileWriteTimeout     time.Duration `env:"PROFILE_WRITE_TIMEOUT" default:"5s"`
	VenueSaveTimeout        time.Duration `env:"VENUE_SAVE_TIMEOUT" default:"10s"`

	GeocoderURL       string  `env:"GEOCODER_URL"`
	GeocoderRate      float64 `env:"GEOCODER_RATE" default:"1"`
	GeocoderUserAgent string  `env:"GEOCODER_USER_AGENT" default:"LocalRadar/1.0"`

	MaxStreamConnections int `env:"MAX_STREAM_CONNECTIONS" default:"1000"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"SESSION_SECRET", cfg.SessionSecret},
	}
	if cfg.IsProduction() {
		required = append(required, struct{ name, value string }{"REDIS_URL", cfg.RedisURL})
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLength)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"SESSION_TTL", cfg.SessionTTL},
		{"PROFILE_BOOTSTRAP_TIMEOUT", cfg.ProfileBootstrapTimeout},
		{"PROFILE_WRITE_TIMEOUT", cfg.ProfileWriteTimeout},
		{"VENUE_SAVE_TIMEOUT", cfg.VenueSaveTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if cfg.GeocoderRate <= 0 {
		return errors.New("GEOCODER_RATE must be positive")
	}
	if cfg.GeocoderURL != "" {
		if _, err := url.ParseRequestURI(cfg.GeocoderURL); err != nil {
			return fmt.Errorf("GEOCODER_URL is not a valid URL: %w", err)
		}
	}

	if cfg.IsProduction() {
		if err := validateSSLMode(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func validateSSLMode(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
