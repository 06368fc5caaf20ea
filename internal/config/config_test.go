package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d, want 4", cfg.WorkerCount)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval() = %s, want 30s", cfg.PollInterval())
	}
	if cfg.ClaimLease() != 5*time.Minute {
		t.Errorf("ClaimLease() = %s, want 5m", cfg.ClaimLease())
	}
	if cfg.TelegramAPIURL != "https://api.telegram.org" {
		t.Errorf("TelegramAPIURL = %s", cfg.TelegramAPIURL)
	}
}

func TestLoad_ChannelEnablement(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.TelegramEnabled() {
		t.Error("TelegramEnabled() = false, want true")
	}
	if cfg.WhatsAppEnabled() {
		t.Error("WhatsAppEnabled() = true with no z-api config")
	}
}

func TestLoad_PartialZAPIConfigRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ZAPI_INSTANCE_ID", "inst-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for partial z-api configuration")
	}
}

func TestLoad_NoChannelConfiguredRejected(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error with no channel configured")
	}
}

func TestLoad_FullZAPIConfig(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ZAPI_INSTANCE_ID", "inst-1")
	t.Setenv("ZAPI_INSTANCE_TOKEN", "tok-1")
	t.Setenv("ZAPI_CLIENT_TOKEN", "client-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.WhatsAppEnabled() {
		t.Error("WhatsAppEnabled() = false, want true")
	}
	if cfg.TelegramEnabled() {
		t.Error("TelegramEnabled() = true with no bot token")
	}
}
