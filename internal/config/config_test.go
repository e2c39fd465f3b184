package config

import (
	"os"
	"testing"
)

// unsetenv clears a variable while keeping t.Setenv's restore-on-cleanup.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "VAULTQ_DB_PATH")
	unsetenv(t, "VAULTQ_OUTPUT")
	unsetenv(t, "VAULTQ_HISTORY_MAX_ITEMS")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.HistoryMaxItems != 10 {
		t.Errorf("expected default history limit 10, got %d", cfg.HistoryMaxItems)
	}
	if cfg.Output != "table" {
		t.Errorf("expected default output table, got %q", cfg.Output)
	}
	if cfg.DBPath == "" {
		t.Error("expected a default database path")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VAULTQ_DB_PATH", "/tmp/override.db")
	t.Setenv("VAULTQ_OUTPUT", "json")
	t.Setenv("VAULTQ_HISTORY_MAX_ITEMS", "25")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Errorf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.Output != "json" {
		t.Errorf("expected env output, got %q", cfg.Output)
	}
	if cfg.HistoryMaxItems != 25 {
		t.Errorf("expected env history limit, got %d", cfg.HistoryMaxItems)
	}
}

func TestLoadRejectsBadHistoryLimit(t *testing.T) {
	t.Setenv("VAULTQ_HISTORY_MAX_ITEMS", "not-a-number")
	t.Setenv("HOME", t.TempDir())

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid history limit")
	}
}

func TestDotenvIsPickedUp(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	unsetenv(t, "VAULTQ_DB_PATH")
	unsetenv(t, "VAULTQ_OUTPUT")
	unsetenv(t, "VAULTQ_HISTORY_MAX_ITEMS")
	if err := os.WriteFile(dir+"/.env.local", []byte("VAULTQ_OUTPUT=yaml\n"), 0644); err != nil {
		t.Fatalf("failed to write .env.local: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Output != "yaml" {
		t.Errorf("expected dotenv output yaml, got %q", cfg.Output)
	}
}
