package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Wire types for the OpenAI-compatible chat completion API

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Part types
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// Detail is the fidelity hint attached to an image part
type Detail string

const (
	DetailHigh Detail = "high"
	DetailLow  Detail = "low"
	DetailAuto Detail = "auto"
)

// FinishReason explains why the model stopped generating.
// Providers may return values outside the constants below.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
)

// Message represents a chat message
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// ContentPart is one typed element of a multipart message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// MarshalJSON keeps the text key on text parts even when it is empty
func (p ContentPart) MarshalJSON() ([]byte, error) {
	if p.Type == PartText {
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{p.Type, p.Text})
	}
	type plain ContentPart
	return json.Marshal(plain(p))
}

// ImageURL references an image by URL or data URI
type ImageURL struct {
	URL    string `json:"url"`
	Detail Detail `json:"detail,omitempty"`
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an image content part
func ImagePart(url string, detail Detail) ContentPart {
	return ContentPart{Type: PartImageURL, ImageURL: &ImageURL{URL: url, Detail: detail}}
}

// DataURI embeds base64 data with its media type, e.g. data:image/jpeg;base64,...
func DataURI(mediaType, base64Data string) string {
	return "data:" + mediaType + ";base64," + base64Data
}

// Content holds either plain text or an ordered list of parts.
// The zero value is unset and encodes as JSON null.
type Content struct {
	text  *string
	parts []ContentPart
}

// Text returns plain text content
func Text(s string) Content {
	return Content{text: &s}
}

// Parts returns multipart content
func Parts(parts ...ContentPart) Content {
	return Content{parts: parts}
}

// IsSet reports whether the content carries text or parts
func (c Content) IsSet() bool {
	return c.text != nil || c.parts != nil
}

// IsMultipart reports whether the content is a list of parts
func (c Content) IsMultipart() bool {
	return c.parts != nil
}

// PartList returns the parts of multipart content
func (c Content) PartList() []ContentPart {
	return c.parts
}

// String returns the text, or the text parts joined by newlines
func (c Content) String() string {
	if c.text != nil {
		return *c.text
	}
	var texts []string
	for _, p := range c.parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// MarshalJSON encodes text as a string and parts as an array
func (c Content) MarshalJSON() ([]byte, error) {
	switch {
	case c.text != nil:
		return json.Marshal(*c.text)
	case c.parts != nil:
		return json.Marshal(c.parts)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, an array of parts or null
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = Content{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.text = &s
	case '[':
		parts := []ContentPart{}
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		c.parts = parts
	default:
		return fmt.Errorf("content must be a string or an array, got %s", data)
	}

	return nil
}

// ChatCompletion represents a chat completion response.
// Scalar fields are nil when the provider omitted them.
type ChatCompletion struct {
	ID      *string  `json:"id"`
	Object  *string  `json:"object"`
	Created *int64   `json:"created"`
	Model   *string  `json:"model"`
	Usage   *Usage   `json:"usage"`
	Choices []Choice `json:"choices"`
}

// Choice represents a completion choice
type Choice struct {
	Index        *int          `json:"index"`
	FinishReason *FinishReason `json:"finish_reason"`
	Message      Message       `json:"message"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UnmarshalJSON accepts a fractional or quoted created timestamp.
// A value that is not a number is treated as absent.
func (c *ChatCompletion) UnmarshalJSON(data []byte) error {
	type plain ChatCompletion
	*c = ChatCompletion{}
	aux := struct {
		*plain
		Created json.RawMessage `json:"created"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if n, ok := looseInt(aux.Created); ok {
		c.Created = &n
	}
	return nil
}

// UnmarshalJSON reads token counts sent as floats or strings
func (u *Usage) UnmarshalJSON(data []byte) error {
	var raw struct {
		PromptTokens     json.RawMessage `json:"prompt_tokens"`
		CompletionTokens json.RawMessage `json:"completion_tokens"`
		TotalTokens      json.RawMessage `json:"total_tokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	prompt, _ := looseInt(raw.PromptTokens)
	completion, _ := looseInt(raw.CompletionTokens)
	total, _ := looseInt(raw.TotalTokens)
	*u = Usage{
		PromptTokens:     int(prompt),
		CompletionTokens: int(completion),
		TotalTokens:      int(total),
	}
	return nil
}

// looseInt truncates a JSON number, or a string holding one, to an integer
func looseInt(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	if n, err := num.Int64(); err == nil {
		return n, true
	}
	f, err := num.Float64()
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// FirstContent returns the text of the first choice
func (c *ChatCompletion) FirstContent() (string, error) {
	if len(c.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}
	return c.Choices[0].Message.Content.String(), nil
}

// ErrorResponse represents an API error body
type ErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}
