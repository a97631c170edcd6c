package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// APIKeyEnv is read when no API key is passed to NewClient
	APIKeyEnv = "OPENAI_API_KEY"

	// DefaultBaseURL is the production endpoint root
	DefaultBaseURL = "https://api.omnia.reainternal.net"

	// ChatCompletionsPath is appended to the base URL
	ChatCompletionsPath = "/v1/chat/completions"

	DefaultUserAgent = "web-agent/1.0"
	DefaultTimeout   = 60 * time.Second

	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.1
)

// Client talks to an OpenAI-compatible chat completion endpoint.
// Its fields never change after NewClient returns.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	userAgent  string

	// Chat mirrors the familiar client.chat.completions namespace
	Chat *Chat
}

// Chat groups chat endpoints
type Chat struct {
	Completions *Completions
}

// Completions creates chat completions
type Completions struct {
	client *Client
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the endpoint root
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the client signature header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client. An empty apiKey is resolved from APIKeyEnv;
// if that is empty too the client cannot be built.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(APIKeyEnv)
	}
	if apiKey == "" {
		return nil, newError(KindConfiguration, nil,
			"API key is required. Set %s environment variable or pass an API key.", APIKeyEnv)
	}

	c := &Client{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.Chat = &Chat{Completions: &Completions{client: c}}

	return c, nil
}

// BaseURL returns the endpoint root without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// createParams holds the generation parameters of one call
type createParams struct {
	maxTokens   int
	temperature float64
	extra       map[string]any
	extraKeys   []string
}

// CreateOption sets a generation parameter
type CreateOption func(*createParams)

// WithMaxTokens bounds the number of output tokens
func WithMaxTokens(n int) CreateOption {
	return func(p *createParams) {
		p.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) CreateOption {
	return func(p *createParams) {
		p.temperature = t
	}
}

// WithExtra adds a provider-specific field to the request body.
// It overrides a named field with the same key.
func WithExtra(key string, value any) CreateOption {
	return func(p *createParams) {
		if p.extra == nil {
			p.extra = make(map[string]any)
		}
		if _, ok := p.extra[key]; !ok {
			p.extraKeys = append(p.extraKeys, key)
		}
		p.extra[key] = value
	}
}

// WithExtras adds several provider-specific fields
func WithExtras(extra map[string]any) CreateOption {
	return func(p *createParams) {
		for k, v := range extra {
			WithExtra(k, v)(p)
		}
	}
}

// Create sends one chat completion request and decodes the reply
func (cc *Completions) Create(ctx context.Context, model string, messages []Message, opts ...CreateOption) (*ChatCompletion, error) {
	return cc.client.createChatCompletion(ctx, model, messages, opts...)
}

func (c *Client) createChatCompletion(ctx context.Context, model string, messages []Message, opts ...CreateOption) (*ChatCompletion, error) {
	// Apply options over the defaults
	params := createParams{
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&params)
	}

	// Validate before anything goes on the wire
	if err := validateRequest(model, messages, params.maxTokens); err != nil {
		return nil, err
	}

	// Marshal request
	body, err := buildPayload(model, messages, params)
	if err != nil {
		return nil, newError(KindUnexpected, err, "failed to marshal request: %v", err)
	}

	// Build request URL
	url := c.baseURL + ChatCompletionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindUnexpected, err, "failed to create request: %v", err)
	}
	c.setHeaders(httpReq)

	// Send request
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newError(KindTransport, err, "%v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read response; a timeout or reset mid-body is still a transport failure
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		e := newError(KindTransport, err, "failed to read response: %v", err)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	// Check for errors
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, respBody)
	}

	// Parse response
	var completion ChatCompletion
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, newError(KindDecode, err, "%v", err)
	}

	return &completion, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// buildPayload encodes the named fields followed by the extras, so a
// colliding extra key replaces the named value.
func buildPayload(model string, messages []Message, p createParams) ([]byte, error) {
	fields := []struct {
		key   string
		value any
	}{
		{"model", model},
		{"messages", messages},
		{"max_tokens", p.maxTokens},
		{"temperature", p.temperature},
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, f := range fields {
		if _, overridden := p.extra[f.key]; overridden {
			continue
		}
		if err := write(f.key, f.value); err != nil {
			return nil, err
		}
	}
	for _, key := range p.extraKeys {
		if err := write(key, p.extra[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// statusError surfaces the upstream error.message when present,
// otherwise the status code and raw body
func statusError(status int, body []byte) *Error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
		e := newError(KindTransport, nil, "%s", errResp.Error.Message)
		e.StatusCode = status
		return e
	}
	e := newError(KindTransport, nil, "HTTP %d: %s", status, string(body))
	e.StatusCode = status
	return e
}

func validateRequest(model string, messages []Message, maxTokens int) error {
	if strings.TrimSpace(model) == "" {
		return newError(KindInvalidRequest, nil, "model is required")
	}
	if len(messages) == 0 {
		return newError(KindInvalidRequest, nil, "at least one message is required")
	}
	if maxTokens <= 0 {
		return newError(KindInvalidRequest, nil, "max_tokens must be positive, got %d", maxTokens)
	}

	for i, msg := range messages {
		if !msg.Role.IsValid() {
			return newError(KindInvalidRequest, nil, "messages[%d]: unknown role %q", i, msg.Role)
		}
		if err := validateContent(msg.Content); err != nil {
			return newError(KindInvalidRequest, err, "messages[%d]: %v", i, err)
		}
	}

	return nil
}

func validateContent(c Content) error {
	if !c.IsSet() {
		return errors.New("content is required")
	}
	if !c.IsMultipart() {
		if c.String() == "" {
			return errors.New("content is empty")
		}
		return nil
	}

	parts := c.PartList()
	if len(parts) == 0 {
		return errors.New("content has no parts")
	}
	for j, p := range parts {
		switch p.Type {
		case PartText:
			if p.Text == "" {
				return fmt.Errorf("parts[%d]: text is empty", j)
			}
		case PartImageURL:
			if p.ImageURL == nil || p.ImageURL.URL == "" {
				return fmt.Errorf("parts[%d]: image_url.url is required", j)
			}
		case "":
			return fmt.Errorf("parts[%d]: type is required", j)
		}
	}
	return nil
}
