package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.Driver != StorageMemory {
		t.Errorf("expected memory storage by default, got %q", cfg.Storage.Driver)
	}
	if cfg.Identity.Timeout != 10*time.Second {
		t.Errorf("expected 10s identity timeout, got %s", cfg.Identity.Timeout)
	}
	if cfg.Browser.CookieName != "switchboard_browser" {
		t.Errorf("unexpected cookie name %q", cfg.Browser.CookieName)
	}
	if cfg.Browser.MaxStores != 10000 {
		t.Errorf("expected 10000 max stores, got %d", cfg.Browser.MaxStores)
	}
	if cfg.Queue.Enabled() {
		t.Error("queue consumer should be disabled without AMQP_URL")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level in development, got %s", cfg.SlogLevel())
	}
}

func TestLoad_TrimsIdentityURL(t *testing.T) {
	t.Setenv("IDENTITY_URL", "http://identity.local:4000/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity.URL != "http://identity.local:4000" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Identity.URL)
	}
}

func TestLoad_RejectsUnknownStorageDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "etcd")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestLoad_ProductionRequiresHTTPSIdentity(t *testing.T) {
	t.Setenv("ENV", "Production")
	t.Setenv("BASE_URL", "https://app.example.com")
	t.Setenv("IDENTITY_URL", "http://identity.internal")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "https") {
		t.Fatalf("expected https error, got %v", err)
	}
}

func TestLoad_ProductionRequiresBaseURL(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("IDENTITY_URL", "https://identity.example.com")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "BASE_URL") {
		t.Fatalf("expected BASE_URL error, got %v", err)
	}
}

func TestSlogLevel_Override(t *testing.T) {
	cfg := &Config{Env: "production", LogLevel: "WARN"}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("expected warn, got %s", cfg.SlogLevel())
	}

	cfg = &Config{Env: "production"}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected info in production, got %s", cfg.SlogLevel())
	}
}

func TestDSN_AppendsDefaultPort(t *testing.T) {
	d := DatabaseConfig{Host: "db", User: "u", Password: "p@ss", Name: "switchboard"}
	dsn := d.DSN()
	if !strings.Contains(dsn, "tcp(db:3306)") {
		t.Errorf("expected default port in DSN, got %q", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("expected parseTime in DSN, got %q", dsn)
	}
}

func TestDSN_Override(t *testing.T) {
	d := DatabaseConfig{dsnOverride: "user:pw@tcp(x:1)/db"}
	if d.DSN() != "user:pw@tcp(x:1)/db" {
		t.Errorf("expected override DSN, got %q", d.DSN())
	}
}
