package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "quillboard.db" {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath)
	}
	if cfg.Retention != 90*24*time.Hour {
		t.Fatalf("unexpected retention: %s", cfg.Retention)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Fatalf("unexpected write timeout: %s", cfg.WriteTimeout)
	}
}

func TestLoadRejectsNonPositiveRetention(t *testing.T) {
	configViper := NewViper()
	configViper.Set("room.retention_days", 0)
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected zero retention to be rejected")
	}
}

func TestLoadRejectsEmptyDatabasePath(t *testing.T) {
	configViper := NewViper()
	configViper.Set("database.path", "  ")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected blank database path to be rejected")
	}
}

func TestLoadRejectsNonPositiveWriteTimeout(t *testing.T) {
	configViper := NewViper()
	configViper.Set("room.write_timeout_seconds", -1)
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected negative write timeout to be rejected")
	}
}
