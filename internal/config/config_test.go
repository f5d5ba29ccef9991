package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAGEFLOW_API_ADDR", "")
	t.Setenv("PAGEFLOW_DEFAULT_QUALITY", "")
	t.Setenv("PAGEFLOW_DEFAULT_FORMAT", "")
	t.Setenv("POSTGRES_DSN", "")

	cfg := Load()
	if cfg.API.Addr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.API.Addr)
	}
	if cfg.Conversion.DefaultQuality != 80 || cfg.Conversion.DefaultOutputFormat != "pdf" {
		t.Fatalf("unexpected conversion defaults %+v", cfg.Conversion)
	}
	if cfg.Database.DSN != "" {
		t.Fatalf("expected in-memory log store by default, got dsn %q", cfg.Database.DSN)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PAGEFLOW_API_ADDR", ":9090")
	t.Setenv("PAGEFLOW_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("PAGEFLOW_TOOL_TIMEOUT", "45s")
	t.Setenv("PAGEFLOW_RATE_LIMIT_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PAGEFLOW_DEFAULT_QUALITY", "not-a-number")

	cfg := Load()
	if cfg.API.Addr != ":9090" || cfg.API.MaxUploadBytes != 1024 {
		t.Fatalf("unexpected api config %+v", cfg.API)
	}
	if cfg.Tools.Timeout != 45*time.Second {
		t.Fatalf("expected 45s tool timeout, got %s", cfg.Tools.Timeout)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RedisOptions().DB != 3 {
		t.Fatalf("unexpected rate limit config %+v", cfg.RateLimit)
	}
	if cfg.Conversion.DefaultQuality != 80 {
		t.Fatalf("expected fallback quality on parse error, got %d", cfg.Conversion.DefaultQuality)
	}
}
