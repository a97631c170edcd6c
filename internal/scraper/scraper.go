// Package scraper captures a web page and asks a vision model to describe it.
package scraper

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kkkkkxiaofei/web-agent/internal/llm"
	"github.com/kkkkkxiaofei/web-agent/internal/screenshot"
	"github.com/kkkkkxiaofei/web-agent/internal/tokens"
	"github.com/rs/zerolog"
)

const (
	DefaultModel             = "gpt-4-vision-preview"
	DefaultScreenshotTimeout = 30 * time.Second

	fallbackMediaType = "image/jpeg"
)

// Completer creates chat completions; *llm.Completions satisfies it
type Completer interface {
	Create(ctx context.Context, model string, messages []llm.Message, opts ...llm.CreateOption) (*llm.ChatCompletion, error)
}

// Gate decides whether another analysis may run
type Gate interface {
	Allow(ctx context.Context) error
}

// Recorder stores finished results
type Recorder interface {
	Record(ctx context.Context, result Result) error
}

// Result is the outcome of one capture-and-analyze run.
// On success Analysis and ScreenshotPath are set, otherwise Error.
type Result struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
	Analysis       string    `json:"analysis,omitempty"`
	Error          string    `json:"error,omitempty"`
	Success        bool      `json:"success"`
	Model          string    `json:"model,omitempty"`
	PromptTokens   int       `json:"prompt_tokens,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// VisionScraper runs the screenshot then analysis pipeline
type VisionScraper struct {
	completer Completer
	taker     screenshot.Taker
	recorder  Recorder
	gate      Gate
	counter   *tokens.Counter
	logger    zerolog.Logger

	model       string
	maxTokens   int
	temperature float64
	detail      llm.Detail
	extra       map[string]any
	timeout     time.Duration

	now   func() time.Time
	newID func() string
}

// Option configures a VisionScraper
type Option func(*VisionScraper)

// WithModel sets the vision model
func WithModel(model string) Option {
	return func(s *VisionScraper) { s.model = model }
}

// WithMaxTokens bounds the length of the analysis
func WithMaxTokens(n int) Option {
	return func(s *VisionScraper) { s.maxTokens = n }
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) Option {
	return func(s *VisionScraper) { s.temperature = t }
}

// WithDetail sets the image fidelity hint
func WithDetail(d llm.Detail) Option {
	return func(s *VisionScraper) { s.detail = d }
}

// WithExtraParams passes provider-specific fields on every request
func WithExtraParams(extra map[string]any) Option {
	return func(s *VisionScraper) { s.extra = extra }
}

// WithScreenshotTimeout sets the page load timeout handed to the Taker
func WithScreenshotTimeout(d time.Duration) Option {
	return func(s *VisionScraper) { s.timeout = d }
}

// WithRecorder stores every result after it is produced
func WithRecorder(r Recorder) Option {
	return func(s *VisionScraper) { s.recorder = r }
}

// WithGate checks g before each run; a refusal becomes a failed Result
func WithGate(g Gate) Option {
	return func(s *VisionScraper) { s.gate = g }
}

// WithTokenCounter enables prompt token estimates on results
func WithTokenCounter(c *tokens.Counter) Option {
	return func(s *VisionScraper) { s.counter = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *VisionScraper) { s.logger = l }
}

// New creates a VisionScraper
func New(completer Completer, taker screenshot.Taker, opts ...Option) *VisionScraper {
	s := &VisionScraper{
		completer:   completer,
		taker:       taker,
		logger:      zerolog.Nop(),
		model:       DefaultModel,
		maxTokens:   llm.DefaultMaxTokens,
		temperature: llm.DefaultTemperature,
		detail:      llm.DetailHigh,
		timeout:     DefaultScreenshotTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TakeScreenshot renders url and returns the image path
func (s *VisionScraper) TakeScreenshot(ctx context.Context, url string) (string, error) {
	return s.taker.Take(ctx, url, s.timeout)
}

// EncodeImage returns the file at path as base64 along with its media type
func (s *VisionScraper) EncodeImage(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("image file not found: %s", path)
		}
		return "", "", fmt.Errorf("error encoding image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), mediaType(data), nil
}

// AnalyzeScreenshot sends the image at path with prompt and returns the reply text
func (s *VisionScraper) AnalyzeScreenshot(ctx context.Context, path, prompt string) (string, error) {
	encoded, mt, err := s.EncodeImage(path)
	if err != nil {
		return "", fmt.Errorf("error analyzing screenshot: %w", err)
	}

	messages := []llm.Message{{
		Role: llm.RoleUser,
		Content: llm.Parts(
			llm.TextPart(prompt),
			llm.ImagePart(llm.DataURI(mt, encoded), s.detail),
		),
	}}

	opts := []llm.CreateOption{
		llm.WithMaxTokens(s.maxTokens),
		llm.WithTemperature(s.temperature),
	}
	if len(s.extra) > 0 {
		opts = append(opts, llm.WithExtras(s.extra))
	}

	resp, err := s.completer.Create(ctx, s.model, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("error analyzing screenshot: %w", err)
	}

	analysis, err := resp.FirstContent()
	if err != nil {
		return "", fmt.Errorf("error analyzing screenshot: %w", err)
	}

	if resp.Usage != nil {
		s.logger.Debug().
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Msg("Analysis usage")
	}

	return analysis, nil
}

// ScrapeAndAnalyze runs the whole pipeline. It never returns an error or
// panics; failures are reported through Result.
func (s *VisionScraper) ScrapeAndAnalyze(ctx context.Context, url, prompt string) (result Result) {
	result = Result{
		ID:        s.newID(),
		URL:       url,
		Model:     s.model,
		CreatedAt: s.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			result = s.fail(result, fmt.Errorf("unexpected error: %v", r))
		}
		s.record(ctx, result)
	}()

	logger := s.logger.With().Str("url", url).Str("id", result.ID).Logger()

	if s.gate != nil {
		if err := s.gate.Allow(ctx); err != nil {
			return s.fail(result, err)
		}
	}

	path, err := s.TakeScreenshot(ctx, url)
	if err != nil {
		return s.fail(result, err)
	}

	if s.counter != nil {
		result.PromptTokens = s.estimatePrompt(path, prompt)
		logger.Debug().Int("estimated_prompt_tokens", result.PromptTokens).Msg("Estimated prompt size")
	}

	logger.Info().Str("model", s.model).Msg("Analyzing screenshot")
	analysis, err := s.AnalyzeScreenshot(ctx, path, prompt)
	if err != nil {
		return s.fail(result, err)
	}

	result.ScreenshotPath = path
	result.Analysis = analysis
	result.Success = true

	logger.Info().Int("chars", len(analysis)).Msg("Analysis complete")
	return result
}

func (s *VisionScraper) fail(result Result, err error) Result {
	s.logger.Error().Err(err).Str("url", result.URL).Msg("Scrape and analyze failed")

	result.ScreenshotPath = ""
	result.Analysis = ""
	result.Error = err.Error()
	result.Success = false
	return result
}

func (s *VisionScraper) record(ctx context.Context, result Result) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, result); err != nil {
		s.logger.Warn().Err(err).Str("id", result.ID).Msg("Failed to record result")
	}
}

// estimatePrompt sizes the request; unreadable images count as low detail
func (s *VisionScraper) estimatePrompt(path, prompt string) int {
	var width, height int
	if f, err := os.Open(path); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			width, height = cfg.Width, cfg.Height
		}
		f.Close()
	}
	return s.counter.Prompt(prompt, s.model, width, height, string(s.detail))
}

// mediaType sniffs the image type, defaulting to JPEG
func mediaType(data []byte) string {
	mt := http.DetectContentType(data)
	if strings.HasPrefix(mt, "image/") {
		return mt
	}
	return fallbackMediaType
}
