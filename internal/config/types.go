package config

import "time"

// Config represents the complete application configuration
type Config struct {
	API        APIConfig        `yaml:"api"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Redis      RedisConfig      `yaml:"redis"`
	Quota      QuotaConfig      `yaml:"quota"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// APIConfig holds the chat completion endpoint settings
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	APIKey    string `yaml:"-"` // From environment, not YAML
	UserAgent string `yaml:"user_agent"`
}

// AnalysisConfig holds the generation parameters and interactive defaults
type AnalysisConfig struct {
	Model         string         `yaml:"model"`
	MaxTokens     int            `yaml:"max_tokens"`
	Temperature   float64        `yaml:"temperature"`
	Detail        string         `yaml:"detail"`
	ExtraParams   map[string]any `yaml:"extra_params,omitempty"`
	DefaultURL    string         `yaml:"default_url"`
	DefaultPrompt string         `yaml:"default_prompt"`
	// EstimateTokens adds a local prompt size estimate to each result
	EstimateTokens bool `yaml:"estimate_tokens"`
}

// ScreenshotConfig describes the external screenshot process
type ScreenshotConfig struct {
	Command      string `yaml:"command"`
	Script       string `yaml:"script"`
	OutputPath   string `yaml:"output_path"`
	TimeoutMS    int    `yaml:"timeout_ms"`
	GraceSeconds int    `yaml:"grace_seconds"`
}

// Timeout returns the page load timeout passed to the screenshot process
func (s *ScreenshotConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// Grace returns the margin allowed on top of Timeout before the process is killed
func (s *ScreenshotConfig) Grace() time.Duration {
	return time.Duration(s.GraceSeconds) * time.Second
}

// RedisConfig holds settings for the optional analysis history
type RedisConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Address         string `yaml:"address"`
	PasswordEnv     string `yaml:"password_env"`
	DB              int    `yaml:"db"`
	KeyPrefix       string `yaml:"key_prefix"`
	HistoryTTLHours int    `yaml:"history_ttl_hours"`
	HistoryLimit    int    `yaml:"history_limit"`
}

// HistoryTTL returns the history retention as a Duration
func (r *RedisConfig) HistoryTTL() time.Duration {
	return time.Duration(r.HistoryTTLHours) * time.Hour
}

// QuotaConfig limits analyses per window; 0 means unlimited.
// Enforced only when Redis is enabled.
type QuotaConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
}

// Enabled reports whether any limit is set
func (q *QuotaConfig) Enabled() bool {
	return q.PerMinute > 0 || q.PerHour > 0
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}
