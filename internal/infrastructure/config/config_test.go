package config

import (
	"context"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.APIPrefix != "/api" || cfg.DBDriver != DriverMongo {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("token ttl = %v", cfg.TokenTTL)
	}
	if cfg.AllowResetTokenEcho() {
		t.Fatalf("reset token echo must be off by default")
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(context.Background()); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")
	if _, err := Load(context.Background()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestAllowResetTokenEcho_NeverInProduction(t *testing.T) {
	cfg := &Config{Env: "production", ExposeResetToken: true}
	if cfg.AllowResetTokenEcho() {
		t.Fatalf("production must never echo reset tokens")
	}
	cfg.Env = "staging"
	if !cfg.AllowResetTokenEcho() {
		t.Fatalf("staging with flag should echo")
	}
}

func TestLoad_BootstrapSuperOfficial(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BOOTSTRAP_SUPER_OFFICIAL_EMAIL", "chair@council.example")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BootstrapSuperOfficial != "chair@council.example" {
		t.Fatalf("bootstrap email = %q", cfg.BootstrapSuperOfficial)
	}
}

func TestLoadClient(t *testing.T) {
	t.Setenv("PORTAL_API_URL", "https://portal.example/api")
	t.Setenv("PORTAL_SESSION_FILE", "/tmp/s.json")

	cfg, err := LoadClient(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "https://portal.example/api" || cfg.SessionFile != "/tmp/s.json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || cfg.PasswordMinLength != 8 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
