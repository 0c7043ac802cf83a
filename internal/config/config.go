// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds command-registry hub configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"command-registry"`

	// Subject overrides (empty = package defaults)
	DispatchSubject       string `envconfig:"HUB_DISPATCH_SUBJECT"`
	CompletedEventSubject string `envconfig:"HUB_COMPLETED_EVENT_SUBJECT"`

	// Dispatch
	RequestTimeout time.Duration `envconfig:"HUB_REQUEST_TIMEOUT" default:"25s"`
	StrictParams   bool          `envconfig:"HUB_STRICT_PARAMS" default:"true"`

	// DefaultProviders maps route path to preferred provider,
	// e.g. "/stocks/load:fmp,/stocks/quote:fmp".
	DefaultProviders map[string]string `envconfig:"HUB_DEFAULT_PROVIDERS"`

	// Journal
	JournalCapacity int `envconfig:"HUB_JOURNAL_CAPACITY" default:"1024"`
	// ArchiveJournal mirrors journal entries to postgres at DATABASE_URL.
	ArchiveJournal bool   `envconfig:"HUB_ARCHIVE_JOURNAL" default:"false"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`

	// Provider credentials (read-through only, never persisted here)
	FMPAPIKey     string `envconfig:"FMP_API_KEY"`
	PolygonAPIKey string `envconfig:"POLYGON_API_KEY"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the hub server.
func (c *Config) ValidateForServe() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - HUB_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.JournalCapacity < 0 {
		return fmt.Errorf("%s - HUB_JOURNAL_CAPACITY must not be negative", logPrefix)
	}
	if c.ArchiveJournal && c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required when HUB_ARCHIVE_JOURNAL is enabled", logPrefix)
	}
	return nil
}
