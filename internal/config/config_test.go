package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Update.IntervalMinutes != 15 {
		t.Errorf("default interval = %d, want 15", cfg.Update.IntervalMinutes)
	}
	if cfg.Build.HistoryLimit != 10 {
		t.Errorf("default history limit = %d, want 10", cfg.Build.HistoryLimit)
	}
	if cfg.Update.Provider != ProviderGeneric {
		t.Errorf("default provider = %q, want %q", cfg.Update.Provider, ProviderGeneric)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updater.yaml")

	content := `
product:
  name: HelixDesk
  app_id: com.helixdesk.app
update:
  provider: hosted-index
  owner: helixdesk
  repo: app
  interval_minutes: 30
build:
  platform: win
  target: nsis
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Update.Provider != ProviderHostedIndex {
		t.Errorf("provider = %q, want hosted-index", cfg.Update.Provider)
	}
	if cfg.Update.IntervalMinutes != 30 {
		t.Errorf("interval = %d, want 30", cfg.Update.IntervalMinutes)
	}
	if cfg.Build.Platform != "win" {
		t.Errorf("platform = %q, want win", cfg.Build.Platform)
	}
	// Defaults survive partial config.
	if cfg.Build.HistoryLimit != 10 {
		t.Errorf("history limit = %d, want default 10", cfg.Build.HistoryLimit)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updater.yaml")

	if err := os.WriteFile(path, []byte("update:\n  provider: carrier-pigeon\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestCacheRootEnvOverride(t *testing.T) {
	t.Setenv(CacheEnvVar, "/tmp/custom-cache")

	b := &BuildConfig{CacheDir: "/configured/cache"}
	if got := b.CacheRoot(); got != "/tmp/custom-cache" {
		t.Errorf("CacheRoot = %q, want env override", got)
	}
}

func TestCacheRootConfigured(t *testing.T) {
	t.Setenv(CacheEnvVar, "")
	os.Unsetenv(CacheEnvVar)

	b := &BuildConfig{CacheDir: "/configured/cache"}
	if got := b.CacheRoot(); got != "/configured/cache" {
		t.Errorf("CacheRoot = %q, want configured dir", got)
	}
}
