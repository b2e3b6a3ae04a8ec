package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Fatalf("unexpected logging defaults: %+v", cfg)
	}
	if cfg.DBSchema != "customer_retention" || cfg.TopN != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"log-level": "debug", "db-schema": "audits", "top-n": 3}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.DBSchema != "audits" || cfg.TopN != 3 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"log-level": "debug"}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CUSTOMER_AUDIT_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("environment should beat the file, got %s", cfg.LogLevel)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
