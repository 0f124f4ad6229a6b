package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("API_RATE_LIMIT_RPS", "")
	t.Setenv("SIGNED_URL_TTL", "")
	t.Setenv("CACHE_MAX_BYTES", "")
	t.Setenv("RETRY_MAX_ATTEMPTS", "")
	t.Setenv("MIGRATE_ON_START", "")

	cfg := Load()
	if cfg.SignedURLTTL != 10*time.Minute {
		t.Fatalf("expected default signed url ttl 10m, got %s", cfg.SignedURLTTL)
	}
	if cfg.CacheMaxBytes != 50*1024*1024 {
		t.Fatalf("expected default cache max bytes 50MiB, got %d", cfg.CacheMaxBytes)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("expected default retry attempts 3, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected default rate limit 20, got %v", cfg.APIRateLimitRPS)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("expected migrations on start by default")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SIGNED_URL_TTL", "90s")
	t.Setenv("CACHE_RETENTION", "48h")
	t.Setenv("DUPLICATE_NAME_THRESHOLD", "80")
	t.Setenv("MIGRATE_ON_START", "false")

	cfg := Load()
	if cfg.SignedURLTTL != 90*time.Second {
		t.Fatalf("expected signed url ttl 90s, got %s", cfg.SignedURLTTL)
	}
	if cfg.CacheRetention != 48*time.Hour {
		t.Fatalf("expected cache retention 48h, got %s", cfg.CacheRetention)
	}
	if cfg.DuplicateNameThreshold != 80 {
		t.Fatalf("expected threshold 80, got %d", cfg.DuplicateNameThreshold)
	}
	if cfg.MigrateOnStart {
		t.Fatalf("expected migrations disabled")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RETRY_MAX_ATTEMPTS", "many")
	t.Setenv("OFFLINE_CEILING", "soon")

	cfg := Load()
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("expected fallback retry attempts 3, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.OfflineCeiling != 2*time.Minute {
		t.Fatalf("expected fallback offline ceiling 2m, got %s", cfg.OfflineCeiling)
	}
}

func TestLoadFileOverlayYieldsToEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("api_port: 9000\nCACHE_MAX_BYTES: 1024\nVIEWER_BASE_URL: https://viewer.test/?src=\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("API_PORT", "")
	t.Setenv("CACHE_MAX_BYTES", "2048")
	t.Setenv("VIEWER_BASE_URL", "")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.APIPort != "9000" {
		t.Fatalf("expected port from file, got %q", cfg.APIPort)
	}
	if cfg.CacheMaxBytes != 2048 {
		t.Fatalf("expected environment to win, got %d", cfg.CacheMaxBytes)
	}
	if cfg.ViewerBaseURL != "https://viewer.test/?src=" {
		t.Fatalf("unexpected viewer url %q", cfg.ViewerBaseURL)
	}
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api_port: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
