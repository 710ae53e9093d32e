package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ANALYSIS_PROVIDER", "")
	t.Setenv("CAPTURE_INTERVAL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.AnalysisProvider != "gemini" {
		t.Fatalf("expected gemini provider by default, got %s", cfg.AnalysisProvider)
	}
	if cfg.CaptureInterval != 4*time.Second {
		t.Fatalf("expected 4s capture interval, got %s", cfg.CaptureInterval)
	}
	if cfg.PowerButtonCaptureInterval != 300*time.Millisecond {
		t.Fatalf("expected 300ms power button interval, got %s", cfg.PowerButtonCaptureInterval)
	}
	if cfg.CountdownDuration != 5*time.Second || cfg.AuthWindow != 5*time.Second {
		t.Fatalf("expected 5s countdown and auth window, got %s / %s", cfg.CountdownDuration, cfg.AuthWindow)
	}
	if cfg.UploadMaxAttempts != 3 {
		t.Fatalf("expected 3 upload attempts, got %d", cfg.UploadMaxAttempts)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ANALYSIS_PROVIDER", " Bedrock ")
	t.Setenv("CAPTURE_INTERVAL", "2s")
	t.Setenv("UPLOAD_MAX_ATTEMPTS", "5")
	t.Setenv("VAULT_RATE_LIMIT", "0.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("REDIS_TLS", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.AnalysisProvider != "bedrock" {
		t.Fatalf("expected normalized provider, got %q", cfg.AnalysisProvider)
	}
	if cfg.CaptureInterval != 2*time.Second {
		t.Fatalf("expected capture interval override, got %s", cfg.CaptureInterval)
	}
	if cfg.UploadMaxAttempts != 5 {
		t.Fatalf("expected attempts override, got %d", cfg.UploadMaxAttempts)
	}
	if cfg.VaultRateLimit != 0.5 {
		t.Fatalf("expected rate override, got %v", cfg.VaultRateLimit)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CAPTURE_INTERVAL", "soon")
	t.Setenv("UPLOAD_MAX_ATTEMPTS", "many")
	cfg := Load()
	if cfg.CaptureInterval != 4*time.Second {
		t.Fatalf("expected fallback interval, got %s", cfg.CaptureInterval)
	}
	if cfg.UploadMaxAttempts != 3 {
		t.Fatalf("expected fallback attempts, got %d", cfg.UploadMaxAttempts)
	}
}
