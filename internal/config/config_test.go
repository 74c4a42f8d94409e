package config

import (
	"testing"
	"time"
)

func TestLoadAll_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://wa:wa@localhost:5432/wa")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Fatalf("expected default port 3000, got %s", cfg.Server.Port)
	}
	if cfg.Credentials.DataDir != "data" {
		t.Fatalf("expected default data dir, got %s", cfg.Credentials.DataDir)
	}
	if !cfg.Sweep.Enabled {
		t.Fatalf("expected sweep enabled by default")
	}
	if cfg.Sweep.Timeout != 120*time.Second {
		t.Fatalf("expected default sweep timeout, got %s", cfg.Sweep.Timeout)
	}
	if cfg.Redis.Enabled {
		t.Fatalf("redis must stay disabled without REDIS_ADDR")
	}
}

func TestLoadAll_Overrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://wa:wa@localhost:5432/wa")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("DATA_DIR", "/var/lib/wa")
	t.Setenv("RESUME_SWEEP", "false")
	t.Setenv("RESUME_SWEEP_TIMEOUT_SECONDS", "30")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TTL_SECONDS", "600")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Credentials.DataDir != "/var/lib/wa" {
		t.Fatalf("expected data dir override, got %s", cfg.Credentials.DataDir)
	}
	if cfg.Sweep.Enabled {
		t.Fatalf("expected sweep disabled")
	}
	if cfg.Sweep.Timeout != 30*time.Second {
		t.Fatalf("expected sweep timeout override, got %s", cfg.Sweep.Timeout)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Address != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("unexpected redis config: %#v", cfg.Redis)
	}
	if cfg.Redis.TTL != 10*time.Minute {
		t.Fatalf("expected redis ttl override, got %s", cfg.Redis.TTL)
	}
}

func TestLoadAll_RejectsZeroSweepTimeout(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://wa:wa@localhost:5432/wa")
	t.Setenv("RESUME_SWEEP_TIMEOUT_SECONDS", "0")

	if _, err := LoadAll(); err == nil {
		t.Fatalf("expected error for zero sweep timeout")
	}
}

func TestGetCorsConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cors := cfg.GetCorsConfig()
	if !cors.AllowAllOrigins {
		t.Fatalf("expected all origins allowed")
	}
	if !cors.AllowCredentials {
		t.Fatalf("expected credentials allowed")
	}
}
