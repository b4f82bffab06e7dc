package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("expected env=development, got %s", cfg.Env)
	}

	if cfg.Feed.ListenAddr != ":8580" {
		t.Errorf("unexpected feed listen addr: %s", cfg.Feed.ListenAddr)
	}

	if cfg.Feed.PingIntervalSec != 15 {
		t.Errorf("expected ping interval 15s, got %d", cfg.Feed.PingIntervalSec)
	}

	if cfg.Redis.Addr != "" {
		t.Errorf("expected redis disabled by default, got %s", cfg.Redis.Addr)
	}

	if cfg.Market.ReserveFloorWei != 100 {
		t.Errorf("expected reserve floor 100 wei, got %d", cfg.Market.ReserveFloorWei)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("AGORA_ENV", "production")
	os.Setenv("AGORA_REDIS_ADDR", "redis-prod:6379")
	defer os.Unsetenv("AGORA_ENV")
	defer os.Unsetenv("AGORA_REDIS_ADDR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("expected env=production, got %s", cfg.Env)
	}

	if cfg.Redis.Addr != "redis-prod:6379" {
		t.Errorf("unexpected redis addr: %s", cfg.Redis.Addr)
	}
}
