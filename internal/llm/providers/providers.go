package providers

import (
	"context"
	"fmt"

	"github.com/builder6/builder6/internal/config"
	"github.com/builder6/builder6/internal/llm"
)

// New constructs the provider selected by the configuration.
func New(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return NewGoogleProvider(ctx, cfg.GeminiAPIKey, "")
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey, "")
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg.AnthropicAPIKey, "")
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}
