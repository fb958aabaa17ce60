package qdrant

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL     ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL     ConfigErrorCode = "invalid_url"
	ConfigErrorInvalidTimeout ConfigErrorCode = "invalid_timeout"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", e.Value)
	case ConfigErrorInvalidTimeout:
		return fmt.Sprintf("invalid QDRANT_TIMEOUT_SECONDS=%q; expected positive integer", e.Value)
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:     strings.TrimSpace(os.Getenv("QDRANT_URL")),
		APIKey:  strings.TrimSpace(os.Getenv("QDRANT_API_KEY")),
		Timeout: 10 * time.Second,
	}

	rawTimeout := strings.TrimSpace(os.Getenv("QDRANT_TIMEOUT_SECONDS"))
	if rawTimeout != "" {
		secs, err := strconv.Atoi(rawTimeout)
		if err != nil || secs <= 0 {
			return Config{}, &ConfigError{
				Code:  ConfigErrorInvalidTimeout,
				Value: rawTimeout,
				Cause: err,
			}
		}
		cfg.Timeout = time.Duration(secs) * time.Second
	}

	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if cfg.URL == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return &ConfigError{
			Code:  ConfigErrorInvalidURL,
			Value: cfg.URL,
			Cause: err,
		}
	}
	return nil
}
