package config

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.omnia.reainternal.net",
			APIKeyEnv: "OPENAI_API_KEY",
			UserAgent: "web-agent/1.0",
		},
		Analysis: AnalysisConfig{
			Model:         "gpt-4-vision-preview",
			MaxTokens:     1000,
			Temperature:   0.1,
			Detail:        "high",
			DefaultURL:    "https://example.com",
			DefaultPrompt: "Describe what you see on this webpage. Include any important text, buttons, links, and overall layout.",
		},
		Screenshot: ScreenshotConfig{
			Command:      "node",
			Script:       "screenshot.js",
			OutputPath:   "screenshot.jpg",
			TimeoutMS:    30000,
			GraceSeconds: 10,
		},
		Redis: RedisConfig{
			Enabled:         false,
			Address:         "localhost:6379",
			DB:              0,
			KeyPrefix:       "webagent:",
			HistoryTTLHours: 168, // 7 days
			HistoryLimit:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
