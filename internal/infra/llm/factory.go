package llm

import (
	"fmt"

	"github.com/vibescan/api/internal/config"
)

// NewProviderFromConfig creates the enrichment provider selected by
// configuration. Returns ErrProviderNotConfigured when no API key for
// the selected provider is set; callers treat that as "enrichment
// unavailable" and fall back, never as a fatal condition.
func NewProviderFromConfig(cfg config.EnrichmentConfig) (Provider, error) {
	switch ProviderType(cfg.Provider) {
	case ProviderTypeClaude, "":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not configured", ErrProviderNotConfigured)
		}
		return NewClaudeProvider(ClaudeConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	case ProviderTypeOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not configured", ErrProviderNotConfigured)
		}
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	case ProviderTypeGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY not configured", ErrProviderNotConfigured)
		}
		return NewGeminiProvider(GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	default:
		return nil, fmt.Errorf("%w: unknown provider: %s", ErrInvalidProvider, cfg.Provider)
	}
}
