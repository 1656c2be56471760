package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestValidateRejectsDegeneratePair(t *testing.T) {
	cfg := Defaults()
	cfg.Feed.Pairs = []MarketPair{{Primary: "full_spread", Hedge: "full_spread"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for pair with identical legs")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "refit"
log_level = "debug"

[detector]
z_threshold = 3.0

[[feed.pairs]]
primary = "q1_total"
hedge = "full_total"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SYNTHARB_DETECTOR_Z_THRESHOLD", "2.0")
	t.Setenv("SYNTHARB_REDIS_ADDR", "redis.internal:6380")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "refit" {
		t.Errorf("Mode got %q, want refit", cfg.Mode)
	}
	if cfg.Detector.ZThreshold != 2.0 {
		t.Errorf("ZThreshold got %v, want env override 2.0", cfg.Detector.ZThreshold)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis.Addr got %q", cfg.Redis.Addr)
	}
	if len(cfg.Feed.Pairs) != 1 || cfg.Feed.Pairs[0].Primary != "q1_total" {
		t.Errorf("Feed.Pairs got %+v", cfg.Feed.Pairs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate, got %v", err)
	}
}
