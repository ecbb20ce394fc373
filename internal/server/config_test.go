package server

import (
	"testing"
	"time"
)

// TestNewConfigDefaults verifies the built-in defaults.
func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("expected port :8080, got %s", cfg.Port)
	}
	if cfg.MaxMessageSize != 65536 {
		t.Errorf("expected max message size 65536, got %d", cfg.MaxMessageSize)
	}
	if cfg.Chat.MessageLogCap != 500 {
		t.Errorf("expected log cap 500, got %d", cfg.Chat.MessageLogCap)
	}
	if cfg.Chat.SendLimitBurst != 3 || cfg.Chat.SendLimitInterval != 5*time.Second {
		t.Errorf("unexpected send limit %d per %s", cfg.Chat.SendLimitBurst, cfg.Chat.SendLimitInterval)
	}
	if len(cfg.Chat.BlockedWords) != 3 {
		t.Errorf("expected 3 blocked words, got %v", cfg.Chat.BlockedWords)
	}
}

// TestNewConfigFromEnv verifies environment variables override defaults and
// unset ones keep them.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example,https://b.example")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("SEND_LIMIT_INTERVAL", "2s")
	t.Setenv("BLOCKED_WORDS", "spoiler,leak")
	t.Setenv("XP_PER_MESSAGE", "25")

	cfg, err := NewConfigFromEnv()
	if err != nil {
		t.Fatalf("NewConfigFromEnv() error: %v", err)
	}

	if cfg.Port != ":9090" {
		t.Errorf("expected port :9090, got %s", cfg.Port)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected production, got %s", cfg.Environment)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("expected burst 10, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("expected default refill interval, got %s", cfg.RateLimit.RefillInterval)
	}
	if cfg.Chat.SendLimitInterval != 2*time.Second {
		t.Errorf("expected send interval 2s, got %s", cfg.Chat.SendLimitInterval)
	}
	if len(cfg.Chat.BlockedWords) != 2 || cfg.Chat.BlockedWords[0] != "spoiler" {
		t.Errorf("unexpected blocked words %v", cfg.Chat.BlockedWords)
	}
	if cfg.Chat.XPPerMessage != 25 {
		t.Errorf("expected 25 xp, got %d", cfg.Chat.XPPerMessage)
	}
	if cfg.Chat.MessageLogCap != 500 {
		t.Errorf("expected default log cap, got %d", cfg.Chat.MessageLogCap)
	}
}

// TestNewConfigFromEnvRejectsMalformedValues verifies parse failures surface.
func TestNewConfigFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "lots")

	if _, err := NewConfigFromEnv(); err == nil {
		t.Fatal("expected an error for a non-numeric MAX_MESSAGE_SIZE")
	}
}

// TestSetConfigSanitizes verifies zero values fall back to defaults and
// origins are normalized.
func TestSetConfigSanitizes(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	got := SetConfig(&Config{
		AllowedOrigins: []string{" HTTP://Example.COM/path ", "", "not a url"},
	})

	if got.Port != ":8080" || got.MaxMessageSize != 65536 {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.Chat.SweepSchedule == "" || got.Chat.XPPerMessage != 10 {
		t.Errorf("chat defaults not applied: %+v", got.Chat)
	}
	if len(got.AllowedOrigins) != 1 || got.AllowedOrigins[0] != "http://example.com" {
		t.Errorf("unexpected origins %v", got.AllowedOrigins)
	}

	active := currentConfig()
	if active.Port != got.Port {
		t.Errorf("active config not updated")
	}
}
