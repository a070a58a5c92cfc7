package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("QRING_CONFIG", writeConfig(t, `{
		"database": {"dsn": "host=localhost"},
		"auth": {"jwt_secret": "secret", "token_expiry": 24}
	}`))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Gateway.ChatQueueSize != 1000 || cfg.Gateway.ChatWorkers != 4 {
		t.Fatalf("gateway defaults = %+v", cfg.Gateway)
	}
	if len(cfg.Gateway.ChatRetryBackoffMS) != 3 || cfg.Gateway.ChatRetryBackoffMS[0] != 250 {
		t.Fatalf("backoff defaults = %v", cfg.Gateway.ChatRetryBackoffMS)
	}
	if cfg.Limiter.VisitorLimit != 30 || cfg.Limiter.VisitorWindowSeconds != 60 {
		t.Fatalf("limiter defaults = %+v", cfg.Limiter)
	}
	if cfg.Database.DSN != "host=localhost" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
}

func TestLoadConfigExplicitValuesKept(t *testing.T) {
	t.Setenv("QRING_CONFIG", writeConfig(t, `{
		"server": {"addr": ":9000"},
		"gateway": {"chat_queue_size": 5, "chat_workers": 1, "chat_retry_backoff_ms": [10]}
	}`))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Gateway.ChatQueueSize != 5 || cfg.Gateway.ChatWorkers != 1 {
		t.Fatalf("gateway = %+v", cfg.Gateway)
	}
	if len(cfg.Gateway.ChatRetryBackoffMS) != 1 || cfg.Gateway.ChatRetryBackoffMS[0] != 10 {
		t.Fatalf("backoff = %v", cfg.Gateway.ChatRetryBackoffMS)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("QRING_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
