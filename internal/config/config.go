package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file.
// A missing file is not an error; defaults are used instead.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Get API key from environment
	if cfg.API.APIKeyEnv != "" {
		cfg.API.APIKey = os.Getenv(cfg.API.APIKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone and a missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Validate API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}

	// Validate analysis
	if strings.TrimSpace(c.Analysis.Model) == "" {
		return fmt.Errorf("analysis.model is required")
	}
	if c.Analysis.MaxTokens <= 0 {
		return fmt.Errorf("analysis.max_tokens must be positive, got %d", c.Analysis.MaxTokens)
	}
	switch c.Analysis.Detail {
	case "high", "low", "auto":
	default:
		return fmt.Errorf("analysis.detail must be one of high, low or auto, got %q", c.Analysis.Detail)
	}

	// Validate screenshot
	if c.Screenshot.Command == "" {
		return fmt.Errorf("screenshot.command is required")
	}
	if c.Screenshot.OutputPath == "" {
		return fmt.Errorf("screenshot.output_path is required")
	}
	if c.Screenshot.TimeoutMS <= 0 {
		return fmt.Errorf("screenshot.timeout_ms must be positive, got %d", c.Screenshot.TimeoutMS)
	}
	if c.Screenshot.GraceSeconds < 0 {
		return fmt.Errorf("screenshot.grace_seconds must not be negative")
	}

	// Validate Redis only when history is enabled
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address is required when redis.enabled is set")
		}
		if c.Redis.HistoryLimit <= 0 {
			return fmt.Errorf("redis.history_limit must be positive")
		}
		if c.Redis.HistoryTTLHours <= 0 {
			return fmt.Errorf("redis.history_ttl_hours must be positive, got %d", c.Redis.HistoryTTLHours)
		}
	}

	if c.Quota.PerMinute < 0 || c.Quota.PerHour < 0 {
		return fmt.Errorf("quota limits must not be negative")
	}

	// Validate logging
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}

	return nil
}
