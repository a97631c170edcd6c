// Package agent wires configuration, storage and the vision scraper together.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kkkkkxiaofei/web-agent/internal/config"
	"github.com/kkkkkxiaofei/web-agent/internal/llm"
	"github.com/kkkkkxiaofei/web-agent/internal/quota"
	"github.com/kkkkkxiaofei/web-agent/internal/scraper"
	"github.com/kkkkkxiaofei/web-agent/internal/screenshot"
	"github.com/kkkkkxiaofei/web-agent/internal/storage"
	"github.com/kkkkkxiaofei/web-agent/internal/tokens"
	"github.com/rs/zerolog"
)

// ErrHistoryDisabled is returned when history is requested without Redis
var ErrHistoryDisabled = errors.New("history is disabled (set redis.enabled in the config)")

// Agent owns the long-lived pieces of the application
type Agent struct {
	config        *config.Config
	configPath    string
	configWatcher *config.Watcher
	configMu      sync.RWMutex
	scraper       *scraper.VisionScraper
	storage       *storage.Client
	history       *scraper.HistoryRecorder
	limiter       *quota.Limiter
	counter       *tokens.Counter
	logger        zerolog.Logger
}

// New creates an agent from a loaded configuration. Redis failures are not
// fatal; the agent runs without history.
func New(ctx context.Context, cfg *config.Config, configPath string, logger zerolog.Logger) (*Agent, error) {
	a := &Agent{
		config:     cfg,
		configPath: configPath,
		counter:    tokens.NewCounter(),
		logger:     logger,
	}

	if cfg.Redis.Enabled {
		storageClient, err := storage.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable - history disabled")
		} else {
			a.storage = storageClient
			a.history = &scraper.HistoryRecorder{
				History: storage.NewHistory(storageClient, cfg.Redis.HistoryTTL(), cfg.Redis.HistoryLimit),
			}
		}
	}

	if a.storage != nil && cfg.Quota.Enabled() {
		limiter, err := quota.NewLimiter(ctx, a.storage, cfg.Quota)
		if err != nil {
			logger.Warn().Err(err).Msg("Quota unavailable - analyses are not limited")
		} else {
			a.limiter = limiter
		}
	} else if cfg.Quota.Enabled() {
		logger.Warn().Msg("Quota requires redis.enabled - analyses are not limited")
	}

	s, err := a.buildScraper(cfg)
	if err != nil {
		a.closeStorage()
		return nil, err
	}
	a.scraper = s

	return a, nil
}

// buildScraper creates the API client and scraper for cfg
func (a *Agent) buildScraper(cfg *config.Config) (*scraper.VisionScraper, error) {
	client, err := llm.NewClient(cfg.API.APIKey,
		llm.WithBaseURL(cfg.API.BaseURL),
		llm.WithUserAgent(cfg.API.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	taker := &screenshot.ProcessTaker{
		Command:    cfg.Screenshot.Command,
		Script:     cfg.Screenshot.Script,
		OutputPath: cfg.Screenshot.OutputPath,
		Grace:      cfg.Screenshot.Grace(),
		Logger:     a.logger.With().Str("component", "screenshot").Logger(),
	}

	opts := []scraper.Option{
		scraper.WithModel(cfg.Analysis.Model),
		scraper.WithMaxTokens(cfg.Analysis.MaxTokens),
		scraper.WithTemperature(cfg.Analysis.Temperature),
		scraper.WithDetail(llm.Detail(cfg.Analysis.Detail)),
		scraper.WithExtraParams(cfg.Analysis.ExtraParams),
		scraper.WithScreenshotTimeout(cfg.Screenshot.Timeout()),
		scraper.WithLogger(a.logger.With().Str("component", "scraper").Logger()),
	}
	if a.history != nil {
		opts = append(opts, scraper.WithRecorder(a.history))
	}
	if a.limiter != nil {
		opts = append(opts, scraper.WithGate(a.limiter))
	}
	if cfg.Analysis.EstimateTokens {
		opts = append(opts, scraper.WithTokenCounter(a.counter))
	}

	return scraper.New(client.Chat.Completions, taker, opts...), nil
}

// WatchConfig reloads the configuration whenever the file changes.
// Without a config file there is nothing to watch.
func (a *Agent) WatchConfig(ctx context.Context) {
	if a.configPath == "" {
		return
	}

	watcher, err := config.NewWatcher(a.configPath, a.Reload, a.logger.With().Str("component", "config").Logger())
	if err != nil {
		a.logger.Debug().Err(err).Msg("Config watcher unavailable - hot reload disabled")
		return
	}

	a.configMu.Lock()
	a.configWatcher = watcher
	a.configMu.Unlock()

	watcher.Start(ctx)
}

// Reload swaps in a scraper built from cfg; the next analysis uses it.
// Redis and quota settings only take effect on restart.
func (a *Agent) Reload(cfg *config.Config) error {
	s, err := a.buildScraper(cfg)
	if err != nil {
		return err
	}

	a.configMu.Lock()
	defer a.configMu.Unlock()

	a.scraper = s
	a.config = cfg
	return nil
}

// GetConfig safely returns the current configuration
func (a *Agent) GetConfig() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}

// Analyze captures url and analyzes it with prompt
func (a *Agent) Analyze(ctx context.Context, url, prompt string) scraper.Result {
	a.configMu.RLock()
	s := a.scraper
	a.configMu.RUnlock()

	return s.ScrapeAndAnalyze(ctx, url, prompt)
}

// Recent returns up to n stored results, newest first
func (a *Agent) Recent(ctx context.Context, n int) ([]scraper.Result, error) {
	if a.history == nil {
		return nil, ErrHistoryDisabled
	}
	return a.history.Recent(ctx, n)
}

// QuotaUsage returns analyses counted in the current minute and hour windows
func (a *Agent) QuotaUsage(ctx context.Context) (minute, hour int, ok bool, err error) {
	if a.limiter == nil {
		return 0, 0, false, nil
	}
	minute, hour, err = a.limiter.Usage(ctx)
	return minute, hour, err == nil, err
}

// Stop releases the watcher and the Redis connection
func (a *Agent) Stop() {
	a.configMu.Lock()
	watcher := a.configWatcher
	a.configWatcher = nil
	a.configMu.Unlock()

	// A reload in flight needs configMu
	if watcher != nil {
		watcher.Stop()
	}

	a.closeStorage()
}

func (a *Agent) closeStorage() {
	if a.storage == nil {
		return
	}
	if err := a.storage.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close Redis connection")
	}
	a.storage = nil
}
