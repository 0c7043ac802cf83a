package config

import (
	"os"
	"testing"
	"time"
)

func clearHubEnv() {
	envVars := []string{
		"COMMS_URL", "SERVICE_NAME",
		"HUB_DISPATCH_SUBJECT", "HUB_COMPLETED_EVENT_SUBJECT",
		"HUB_REQUEST_TIMEOUT", "HUB_STRICT_PARAMS",
		"HUB_DEFAULT_PROVIDERS", "HUB_JOURNAL_CAPACITY",
		"HUB_ARCHIVE_JOURNAL", "DATABASE_URL",
		"FMP_API_KEY", "POLYGON_API_KEY", "LOG_LEVEL",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Clear all environment variables that might interfere
	clearHubEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	// Verify defaults
	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "command-registry" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "command-registry")
	}
	if cfg.DispatchSubject != "" {
		t.Errorf("config:config_test - DispatchSubject = %q, want empty", cfg.DispatchSubject)
	}
	if cfg.CompletedEventSubject != "" {
		t.Errorf("config:config_test - CompletedEventSubject = %q, want empty", cfg.CompletedEventSubject)
	}
	if cfg.RequestTimeout != 25*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 25s", cfg.RequestTimeout)
	}
	if !cfg.StrictParams {
		t.Error("config:config_test - expected StrictParams=true by default")
	}
	if len(cfg.DefaultProviders) != 0 {
		t.Errorf("config:config_test - DefaultProviders = %v, want empty", cfg.DefaultProviders)
	}
	if cfg.JournalCapacity != 1024 {
		t.Errorf("config:config_test - JournalCapacity = %d, want 1024", cfg.JournalCapacity)
	}
	if cfg.ArchiveJournal {
		t.Error("config:config_test - expected ArchiveJournal=false by default")
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearHubEnv()
	overrides := map[string]string{
		"COMMS_URL":                   "nats://custom:4222",
		"SERVICE_NAME":                "test-hub",
		"HUB_DISPATCH_SUBJECT":        "custom.dispatch",
		"HUB_COMPLETED_EVENT_SUBJECT": "custom.completed",
		"HUB_REQUEST_TIMEOUT":         "10s",
		"HUB_STRICT_PARAMS":           "false",
		"HUB_DEFAULT_PROVIDERS":       "/stocks/load:fmp,/stocks/quote:polygon",
		"HUB_JOURNAL_CAPACITY":        "64",
		"HUB_ARCHIVE_JOURNAL":         "true",
		"DATABASE_URL":                "postgres://test@localhost/test",
		"FMP_API_KEY":                 "fmp-secret",
		"POLYGON_API_KEY":             "polygon-secret",
		"LOG_LEVEL":                   "debug",
	}
	for k, v := range overrides {
		os.Setenv(k, v)
	}
	defer clearHubEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" {
		t.Errorf("config:config_test - COMMSURL = %q", cfg.COMMSURL)
	}
	if cfg.COMMSName != "test-hub" {
		t.Errorf("config:config_test - COMMSName = %q", cfg.COMMSName)
	}
	if cfg.DispatchSubject != "custom.dispatch" {
		t.Errorf("config:config_test - DispatchSubject = %q", cfg.DispatchSubject)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.StrictParams {
		t.Error("config:config_test - expected StrictParams=false")
	}
	if cfg.DefaultProviders["/stocks/load"] != "fmp" || cfg.DefaultProviders["/stocks/quote"] != "polygon" {
		t.Errorf("config:config_test - DefaultProviders = %v", cfg.DefaultProviders)
	}
	if cfg.JournalCapacity != 64 {
		t.Errorf("config:config_test - JournalCapacity = %d, want 64", cfg.JournalCapacity)
	}
	if !cfg.ArchiveJournal {
		t.Error("config:config_test - expected ArchiveJournal=true")
	}
	if cfg.FMPAPIKey != "fmp-secret" || cfg.PolygonAPIKey != "polygon-secret" {
		t.Error("config:config_test - provider API keys not loaded")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestValidateForServe(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *Config) { c.RequestTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative journal capacity",
			mutate:  func(c *Config) { c.JournalCapacity = -1 },
			wantErr: true,
		},
		{
			name:    "archive without database url",
			mutate:  func(c *Config) { c.ArchiveJournal = true },
			wantErr: true,
		},
		{
			name: "archive with database url",
			mutate: func(c *Config) {
				c.ArchiveJournal = true
				c.DatabaseURL = "postgres://test@localhost/test"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{RequestTimeout: 25 * time.Second, JournalCapacity: 1024}
			tc.mutate(cfg)
			err := cfg.ValidateForServe()
			if tc.wantErr && err == nil {
				t.Errorf("config:config_test - expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("config:config_test - unexpected error: %v", err)
			}
		})
	}
}
