// Package llm is the text-generation collaborator behind nugget extraction,
// built on CloudWeGo Eino so any supported provider can serve it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrUnavailable means no provider is configured or reachable. Callers treat
// this as "no LLM", not as a failure.
var ErrUnavailable = errors.New("llm provider unavailable")

// Provider identifies the LLM provider to use.
type Provider string

// Config holds configuration for creating a Client.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string        // required for openai, anthropic, gemini
	BaseURL  string        // ollama only (default http://localhost:11434)
	Timeout  time.Duration // per-call bound, DefaultTimeout when zero
}

// TextGenerator is what extraction needs from an LLM.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Client wraps an Eino chat model behind TextGenerator.
type Client struct {
	chatModel model.BaseChatModel
	timeout   time.Duration
}

// NewClient builds a client for the configured provider. A missing API key or
// unknown provider yields ErrUnavailable so extraction can fall back.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Provider == "" {
		return nil, ErrUnavailable
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}

	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{chatModel: chatModel, timeout: timeout}, nil
}

func newChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrUnavailable)
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		})

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
		})

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic: %w", ErrUnavailable)
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini: %w", ErrUnavailable)
		}
		// The gemini extension reads credentials from the environment.
		_ = os.Setenv("GOOGLE_API_KEY", cfg.APIKey)
		_ = os.Setenv("GEMINI_API_KEY", cfg.APIKey)
		return gemini.NewChatModel(ctx, &gemini.Config{
			Model: cfg.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported provider %q: %w", cfg.Provider, ErrUnavailable)
	}
}

// ValidateProvider checks that p names a supported provider.
func ValidateProvider(p string) (Provider, error) {
	switch Provider(p) {
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic, ProviderGemini:
		return Provider(p), nil
	}
	return "", fmt.Errorf("unsupported provider: %s (supported: openai, ollama, anthropic, gemini)", p)
}

// GenerateText sends one prompt and returns the model's text response.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return "", ErrUnavailable
	}
	return resp.Content, nil
}
