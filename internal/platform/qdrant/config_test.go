package qdrant

import (
	"errors"
	"testing"
	"time"
)

func TestResolveConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_API_KEY", "")
	t.Setenv("QDRANT_TIMEOUT_SECONDS", "")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v, want 10s", cfg.Timeout)
	}
}

func TestResolveConfigFromEnvMissingURL(t *testing.T) {
	t.Setenv("QDRANT_URL", "")

	_, err := ResolveConfigFromEnv()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Code != ConfigErrorMissingURL {
		t.Fatalf("err = %v, want missing_url ConfigError", err)
	}
}

func TestResolveConfigFromEnvBadTimeout(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_TIMEOUT_SECONDS", "soon")

	_, err := ResolveConfigFromEnv()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Code != ConfigErrorInvalidTimeout {
		t.Fatalf("err = %v, want invalid_timeout ConfigError", err)
	}
}

func TestValidateConfigRejectsRelativeURL(t *testing.T) {
	err := ValidateConfig(Config{URL: "qdrant:6333", Timeout: time.Second})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Code != ConfigErrorInvalidURL {
		t.Fatalf("err = %v, want invalid_url ConfigError", err)
	}
}
