// Package config loads console configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all console settings.
type Config struct {
	HTTPAddr    string `yaml:"http_addr" env:"HTTP_ADDR"`
	DatabaseDSN string `yaml:"database_dsn" env:"DATABASE_DSN"`

	NATSURL       string `yaml:"nats_url" env:"NATS_URL"`
	StreamName    string `yaml:"stream_name" env:"STREAM_NAME"`
	ConsumerName  string `yaml:"consumer_name" env:"CONSUMER_NAME"`
	SubjectFilter string `yaml:"subject_filter" env:"SUBJECT_FILTER"`

	OfferTTL     time.Duration `yaml:"offer_ttl" env:"OFFER_TTL"`
	TickInterval time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`

	// LockTerminalOffers hardens the offer state machine so resolved
	// offers ignore late duplicate events.
	LockTerminalOffers bool `yaml:"lock_terminal_offers" env:"LOCK_TERMINAL_OFFERS"`
}

// UnmarshalYAML decodes the file representation, where durations are
// written as "30s"-style strings. Absent keys leave the current values
// untouched so defaults survive a partial file.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		HTTPAddr           *string `yaml:"http_addr"`
		DatabaseDSN        *string `yaml:"database_dsn"`
		NATSURL            *string `yaml:"nats_url"`
		StreamName         *string `yaml:"stream_name"`
		ConsumerName       *string `yaml:"consumer_name"`
		SubjectFilter      *string `yaml:"subject_filter"`
		OfferTTL           *string `yaml:"offer_ttl"`
		TickInterval       *string `yaml:"tick_interval"`
		LockTerminalOffers *bool   `yaml:"lock_terminal_offers"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&c.HTTPAddr, raw.HTTPAddr)
	setString(&c.DatabaseDSN, raw.DatabaseDSN)
	setString(&c.NATSURL, raw.NATSURL)
	setString(&c.StreamName, raw.StreamName)
	setString(&c.ConsumerName, raw.ConsumerName)
	setString(&c.SubjectFilter, raw.SubjectFilter)

	if raw.OfferTTL != nil {
		d, err := time.ParseDuration(*raw.OfferTTL)
		if err != nil {
			return fmt.Errorf("offer_ttl: %w", err)
		}
		c.OfferTTL = d
	}
	if raw.TickInterval != nil {
		d, err := time.ParseDuration(*raw.TickInterval)
		if err != nil {
			return fmt.Errorf("tick_interval: %w", err)
		}
		c.TickInterval = d
	}
	if raw.LockTerminalOffers != nil {
		c.LockTerminalOffers = *raw.LockTerminalOffers
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		NATSURL:       "nats://localhost:4222",
		StreamName:    "DISPATCH_EVENTS",
		ConsumerName:  "ops-console",
		SubjectFilter: "dispatch.events.>",
		OfferTTL:      30 * time.Second,
		TickInterval:  200 * time.Millisecond,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty or missing), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine, env and defaults still apply.
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http_addr must not be empty")
	}
	if cfg.OfferTTL <= 0 {
		return nil, fmt.Errorf("offer_ttl must be positive")
	}

	return &cfg, nil
}
