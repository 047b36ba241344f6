package llm

import (
	"context"
	"fmt"

	"github.com/sfaret/stipslite/internal/config"
)

// Client is the interface for hosted model providers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single completion call. Schema, when set, describes the JSON
// object the caller expects back; providers with structured output enforce
// it, the rest receive it as part of the prompt.
type Request struct {
	Prompt string
	Schema *Schema
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// NewClient creates an LLM client based on the config provider setting.
// An empty provider means no model is configured.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "":
		return nil, fmt.Errorf("no LLM provider configured")
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires GEMINI_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "gemini-2.0-flash"
		}
		return NewGemini(cfg.APIKey, model)
	case "azure":
		if cfg.APIKey == "" || cfg.Endpoint == "" || cfg.Deployment == "" {
			return nil, fmt.Errorf("azure provider requires api_key, endpoint and deployment")
		}
		return NewAzure(cfg.Endpoint, cfg.APIKey, cfg.Deployment)
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.APIKey, model), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
