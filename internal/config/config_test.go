package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Expected default cache backend memory, got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.MaxSize != 1000 {
		t.Errorf("Expected default cache max size 1000, got %d", cfg.Cache.MaxSize)
	}
	if cfg.LLM.FallbackThreshold != 0.6 {
		t.Errorf("Expected default fallback threshold 0.6, got %v", cfg.LLM.FallbackThreshold)
	}
	if cfg.LLM.MaxCallsPerUserPerMinute != 10 {
		t.Errorf("Expected default LLM quota 10, got %d", cfg.LLM.MaxCallsPerUserPerMinute)
	}
	if cfg.Pipeline.DeadlineSeconds != 30 {
		t.Errorf("Expected default deadline 30s, got %d", cfg.Pipeline.DeadlineSeconds)
	}
	if cfg.Pipeline.CatalogVersionTag != "v1" {
		t.Errorf("Expected default catalog version v1, got %s", cfg.Pipeline.CatalogVersionTag)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("CACHE_MAX_SIZE", "50")
	t.Setenv("LLM_FALLBACK_THRESHOLD", "0.8")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("Expected port 9999, got %s", cfg.Server.Port)
	}
	if cfg.Cache.MaxSize != 50 {
		t.Errorf("Expected cache max size 50, got %d", cfg.Cache.MaxSize)
	}
	if cfg.LLM.FallbackThreshold != 0.8 {
		t.Errorf("Expected fallback threshold 0.8, got %v", cfg.LLM.FallbackThreshold)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"port": "7777"},
		"cache": {"backend": "redis", "redis_addr": "redis:6379"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "7777" {
		t.Errorf("Expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("Expected redis settings from file, got %+v", cfg.Cache)
	}
}

func TestLoadConfig_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": "7777"}}`), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("SERVER_PORT", "6666")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "6666" {
		t.Errorf("Environment must win over the file, got %s", cfg.Server.Port)
	}
}

func TestLoadConfig_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"serve": {"port": "7777"}}`), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected an error for an unknown config key")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}

	bad := *cfg
	bad.Cache.Backend = "memcached"
	if err := bad.Validate(); err == nil {
		t.Error("Expected rejection for unknown cache backend")
	}

	bad = *cfg
	bad.LLM.FallbackThreshold = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("Expected rejection for threshold above 1")
	}

	bad = *cfg
	bad.Pipeline.CatalogVersionTag = ""
	if err := bad.Validate(); err == nil {
		t.Error("Expected rejection for empty catalog version tag")
	}
}
