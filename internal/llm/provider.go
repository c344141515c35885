// Package llm provides a provider-agnostic completion interface used by the
// classification and extraction steps.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g., "openai/gpt-4").
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // 0 = provider default
	Temperature float64 // 0 = deterministic
	System      string  // optional system prompt
}

// Config holds provider configuration.
type Config struct {
	Provider string        // "openai"
	Model    string        // e.g. "gpt-4"
	APIKey   string        // required
	BaseURL  string        // optional, for OpenAI-compatible gateways
	Timeout  time.Duration // per request, 0 = no client-side timeout
}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an api key (llm.apiKey or OPENAI_API_KEY)")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4"
		}
		return newOpenAIProvider(cfg.APIKey, model, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: openai)", cfg.Provider)
	}
}
