package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.HoldTTL != 15*time.Minute {
		t.Fatalf("expected default hold TTL 15m, got %v", cfg.HoldTTL)
	}
	if cfg.ConfirmExpiryBuffer != 30*time.Second {
		t.Fatalf("expected default expiry buffer 30s, got %v", cfg.ConfirmExpiryBuffer)
	}
	if cfg.DispatchMaxAttempts != 5 {
		t.Fatalf("expected default max attempts 5, got %d", cfg.DispatchMaxAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HOLD_TTL", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.HoldTTL != 5*time.Minute {
		t.Fatalf("expected hold TTL 5m, got %v", cfg.HoldTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
