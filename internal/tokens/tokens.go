// Package tokens estimates how many prompt tokens a vision request will use.
package tokens

import (
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// per-message formatting overhead and reply priming used by chat models
	messageOverhead = 4
	replyPriming    = 3

	lowDetailImageTokens = 85
	tileTokens           = 170
	tileSize             = 512
	maxSide              = 2048
	shortSide            = 768
)

// Counter counts text tokens with tiktoken and estimates image tokens
type Counter struct {
	mu sync.Mutex
	// Cache encoders for reuse
	encoders map[string]*tiktoken.Tiktoken
}

// NewCounter creates a new token counter
func NewCounter() *Counter {
	return &Counter{
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// Count returns the number of tokens in a text for a given model
func (c *Counter) Count(text, model string) int {
	encoding := encodingName(model)

	c.mu.Lock()
	encoder, ok := c.encoders[encoding]
	if !ok {
		var err error
		encoder, err = tiktoken.GetEncoding(encoding)
		if err != nil {
			c.mu.Unlock()
			// Fallback to simple estimation if the encoding can't be loaded
			return estimate(text)
		}
		c.encoders[encoding] = encoder
	}
	c.mu.Unlock()

	return len(encoder.Encode(text, nil, nil))
}

// Image estimates the tokens consumed by an image of the given size.
// Low detail is a flat cost; high and auto scale the image into 512px tiles.
func Image(width, height int, detail string) int {
	if detail == "low" {
		return lowDetailImageTokens
	}
	if width <= 0 || height <= 0 {
		return lowDetailImageTokens
	}

	w, h := float64(width), float64(height)

	// Fit within a 2048x2048 square
	if w > maxSide || h > maxSide {
		scale := maxSide / math.Max(w, h)
		w, h = w*scale, h*scale
	}

	// Shortest side scaled down to 768px
	if s := math.Min(w, h); s > shortSide {
		scale := shortSide / s
		w, h = w*scale, h*scale
	}

	tiles := int(math.Ceil(w/tileSize)) * int(math.Ceil(h/tileSize))
	return lowDetailImageTokens + tileTokens*tiles
}

// Prompt estimates the prompt tokens of a single user message made of
// text and one image
func (c *Counter) Prompt(text, model string, width, height int, detail string) int {
	return c.Count(text, model) + Image(width, height, detail) + messageOverhead + replyPriming
}

// encodingName returns the tiktoken encoding name for a model
func encodingName(model string) string {
	m := strings.ToLower(model)
	if strings.Contains(m, "gpt-4o") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") {
		return "o200k_base"
	}
	// GPT-4, GPT-3.5 and most compatible backends
	return "cl100k_base"
}

// estimate provides a rough token estimate (chars/4)
func estimate(text string) int {
	return (len(text) + 3) / 4
}
