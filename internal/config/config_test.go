package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("want default port, got %q", cfg.Server.Port)
	}
	if cfg.Feed.Endpoint == "" {
		t.Fatal("default feed endpoint missing")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("server:\n  port: \"9090\"\nfeed:\n  endpoint: https://feed.example.com/prices.json\n  cache_ttl_sec: 0\nsessions:\n  max: 5\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port not applied: %q", cfg.Server.Port)
	}
	if cfg.Feed.Endpoint != "https://feed.example.com/prices.json" {
		t.Fatalf("endpoint not applied: %q", cfg.Feed.Endpoint)
	}
	if cfg.Feed.CacheTTLSeconds != 0 {
		t.Fatalf("explicit zero ttl not applied: %d", cfg.Feed.CacheTTLSeconds)
	}
	if cfg.Sessions.Max != 5 {
		t.Fatalf("sessions max not applied: %d", cfg.Sessions.Max)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("FEED_ENDPOINT", "https://env.example.com/p.json")
	t.Setenv("FEED_CACHE_TTL_SEC", "0")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7777" {
		t.Fatalf("env port not applied: %q", cfg.Server.Port)
	}
	if cfg.Feed.Endpoint != "https://env.example.com/p.json" {
		t.Fatalf("env endpoint not applied: %q", cfg.Feed.Endpoint)
	}
	if cfg.Feed.CacheTTLSeconds != 0 {
		t.Fatalf("env zero ttl not applied: %d", cfg.Feed.CacheTTLSeconds)
	}
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want parse error")
	}
}
