package llm

import (
	"context"
	"strings"
)

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Provider interface {
	// Complete sends a chat completion request and returns the full response.
	// When tools is non-empty the model chooses whether to call them.
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	// ToolChoice is sent with requests that carry tools. Empty means "auto".
	ToolChoice string
}

// Configured reports whether the config names a usable backend. Placeholder
// keys such as "sk-your-key" count as missing.
func (c *Config) Configured() bool {
	if c == nil || c.BaseURL == "" || c.Model == "" {
		return false
	}
	key := c.APIKey
	return key != "" && !strings.HasPrefix(key, "sk-your")
}
