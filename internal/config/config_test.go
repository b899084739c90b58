package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.RedisRateLimitPrefix != "crosspay:rate_limit" {
		t.Fatalf("expected default rate limit prefix, got %q", cfg.RedisRateLimitPrefix)
	}
	if cfg.TransferRateLimitPerMinute != 30 || cfg.WithdrawalRateLimitPerMinute != 30 {
		t.Fatalf("expected default rate limits 30/30, got %d/%d", cfg.TransferRateLimitPerMinute, cfg.WithdrawalRateLimitPerMinute)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TREASURY_ACCOUNT", "  treasury-account  ")
	t.Setenv("TRANSFER_RATE_LIMIT_PER_MINUTE", "-5")
	t.Setenv("AUTH_AUDIENCE", "crosspay-api")
	t.Setenv("AUTH_ISSUER", "https://auth.example.com")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.ServerPort)
	}
	if cfg.TreasuryAccount != "treasury-account" {
		t.Fatalf("expected trimmed treasury account, got %q", cfg.TreasuryAccount)
	}
	// Negative limits are coerced to disabled.
	if cfg.TransferRateLimitPerMinute != 0 {
		t.Fatalf("expected negative limit coerced to 0, got %d", cfg.TransferRateLimitPerMinute)
	}
	if cfg.AuthAudience != "crosspay-api" {
		t.Fatalf("expected audience from environment, got %q", cfg.AuthAudience)
	}
	if cfg.AuthIssuer != "https://auth.example.com" {
		t.Fatalf("expected issuer from environment, got %q", cfg.AuthIssuer)
	}
}
