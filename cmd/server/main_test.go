package main

import (
	"strings"
	"testing"
)

// TestSetupBuildsServerFromEnv verifies the process wiring assembles a
// server from environment variables.
func TestSetupBuildsServerFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9191")
	t.Setenv("APP_ENV", "test")

	srv, cfg, _, err := setup()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if srv == nil || srv.Dispatcher() == nil {
		t.Fatal("expected an assembled server")
	}
	if cfg.Port != ":9191" || cfg.Environment != "test" {
		t.Errorf("config not read from env: port=%q env=%q", cfg.Port, cfg.Environment)
	}
}

// TestSetupReportsBadConfiguration verifies a malformed environment is
// reported with a usable logger instead of a partially built server.
func TestSetupReportsBadConfiguration(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "lots")

	srv, _, logger, err := setup()
	if err == nil {
		t.Fatal("expected an error for a non-numeric MAX_MESSAGE_SIZE")
	}
	if srv != nil {
		t.Error("no server should be built from a bad configuration")
	}
	if !strings.Contains(err.Error(), "load configuration") {
		t.Errorf("unexpected error: %v", err)
	}
	logger.Debug().Err(err).Msg("logger stays usable")
}

// TestSetupRejectsMalformedModeratorHash verifies server construction
// failures surface from setup.
func TestSetupRejectsMalformedModeratorHash(t *testing.T) {
	t.Setenv("MODERATOR_KEY_HASH", "not-a-bcrypt-hash")

	_, _, _, err := setup()
	if err == nil || !strings.Contains(err.Error(), "build server") {
		t.Fatalf("expected a build error, got %v", err)
	}
}
