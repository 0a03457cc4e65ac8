package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("audit.signing_secret", "signing")
	configViper.Set("audit.trigger_secret", "trigger")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "loopband.db" {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
	if cfg.AutoAudit {
		t.Fatalf("expected auto audit disabled by default")
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	tests := []struct {
		name    string
		missing string
	}{
		{name: "missing-signing-secret", missing: "audit.signing_secret"},
		{name: "missing-trigger-secret", missing: "audit.trigger_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set("audit.signing_secret", "signing")
			configViper.Set("audit.trigger_secret", "trigger")
			configViper.Set(tt.missing, "")

			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error for %s", tt.missing)
			} else if !strings.Contains(err.Error(), tt.missing) {
				t.Fatalf("expected error to mention %s, got %v", tt.missing, err)
			}
		})
	}
}

func TestLoadRequiresDatabasePath(t *testing.T) {
	configViper := NewViper()
	configViper.Set("audit.signing_secret", "signing")
	configViper.Set("audit.trigger_secret", "trigger")
	configViper.Set("database.path", "  ")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected validation error for database.path")
	}
}
