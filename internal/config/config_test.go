package config_test

import (
	"os"
	"testing"

	"github.com/onchainsignal/tracker/internal/config"
)

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("TARGET_TOKEN_MINT", "Mint111")
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	os.Setenv("ENV", "test")
	defer func() {
		os.Unsetenv("TARGET_TOKEN_MINT")
		os.Unsetenv("REDIS_URL")
		os.Unsetenv("ENV")
	}()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TargetTokenMint != "Mint111" {
		t.Fatalf("expected TARGET_TOKEN_MINT to be loaded, got %s", cfg.TargetTokenMint)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Fatalf("expected REDIS_URL to be loaded, got %s", cfg.RedisURL)
	}
	if cfg.Env != "test" {
		t.Fatalf("expected ENV=test, got %s", cfg.Env)
	}
	if cfg.ChatThresholdUSD != 500 {
		t.Fatalf("expected default chat threshold 500, got %v", cfg.ChatThresholdUSD)
	}
}

func TestLoadConfigMissingTargetMintFails(t *testing.T) {
	os.Unsetenv("TARGET_TOKEN_MINT")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when TARGET_TOKEN_MINT is missing")
	}
}
