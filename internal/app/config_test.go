package app

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
search:
  endpoint: "http://localhost:9000"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Search.TimeoutSeconds != defaultSearchTimeoutSeconds {
		t.Fatalf("timeout = %d, want %d", cfg.Search.TimeoutSeconds, defaultSearchTimeoutSeconds)
	}
	if cfg.Search.TriggerKeyword != "以图搜图" {
		t.Fatalf("keyword = %q", cfg.Search.TriggerKeyword)
	}
	if cfg.CoreConfig().Telegram.RunMode != "longpoll" {
		t.Fatalf("run mode = %q", cfg.CoreConfig().Telegram.RunMode)
	}
}

func TestLoadConfigRequiresEndpoint(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for missing search.endpoint")
	}
}

func TestLoadConfigCustomSearchSection(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
search:
  endpoint: "http://search.internal"
  timeout_seconds: 15
  trigger_keyword: "search"
  disabled_engines: [bing, ehentai]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Search.TimeoutSeconds != 15 || cfg.Search.TriggerKeyword != "search" {
		t.Fatalf("search config = %+v", cfg.Search)
	}
	if len(cfg.Search.DisabledEngines) != 2 {
		t.Fatalf("disabled = %v", cfg.Search.DisabledEngines)
	}
}
