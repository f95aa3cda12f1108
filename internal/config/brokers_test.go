package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brokers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write catalog file: %v", err)
	}
	return path
}

func TestLoadBrokerCatalog(t *testing.T) {
	path := writeCatalog(t, `
brokers:
  - code: zerodha
    display_name: Zerodha
  - code: coinswitch
`)

	types, err := LoadBrokerCatalog(path)
	if err != nil {
		t.Fatalf("LoadBrokerCatalog failed: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("Expected 2 catalog entries, got %d", len(types))
	}
	if types[0].Code != "zerodha" || types[0].DisplayName != "Zerodha" {
		t.Errorf("Unexpected first entry: %+v", types[0])
	}
	if types[1].DisplayName != "coinswitch" {
		t.Errorf("Expected code as display name fallback, got %q", types[1].DisplayName)
	}
}

func TestLoadBrokerCatalog_MissingCode(t *testing.T) {
	path := writeCatalog(t, `
brokers:
  - display_name: Nameless
`)

	if _, err := LoadBrokerCatalog(path); err == nil {
		t.Error("Expected error for entry without code")
	}
}

func TestLoadBrokerCatalog_MissingFile(t *testing.T) {
	if _, err := LoadBrokerCatalog(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing catalog file")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Worker.MaxRetries != 5 {
		t.Errorf("Expected default max retries 5, got %d", cfg.Worker.MaxRetries)
	}
	if cfg.Worker.QueueName != "default" {
		t.Errorf("Expected default queue name, got %q", cfg.Worker.QueueName)
	}
	if cfg.Database.Path == "" {
		t.Error("Expected a default database path")
	}
}
