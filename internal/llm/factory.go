package llm

import (
	"fmt"

	"github.com/yctsai/baobei/internal/config"
)

// NewProviders builds the provider list in fixed priority order: Gemini is
// the primary, OpenAI the secondary. Eligibility (credential presence) is
// checked per call via Available, not here, so a provider constructed
// without a key still occupies its slot in the order.
func NewProviders(cfg *config.Config) []Provider {
	return []Provider{
		NewGeminiProvider(providerConfig("gemini", cfg.AI.Gemini)),
		NewOpenAIProvider(providerConfig("openai", cfg.AI.OpenAI)),
	}
}

// NewProviderByName creates a single provider by name.
func NewProviderByName(name string, cfg *ProviderConfig) (Provider, error) {
	switch name {
	case "gemini":
		return NewGeminiProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// providerConfig merges configured settings over the provider defaults.
func providerConfig(name string, settings config.ProviderSettings) *ProviderConfig {
	cfg := DefaultConfig(name)
	if settings.APIKey != "" {
		cfg.APIKey = settings.APIKey
	}
	if settings.Endpoint != "" {
		cfg.Endpoint = settings.Endpoint
	}
	if settings.Model != "" {
		cfg.Model = settings.Model
	}
	if settings.VisionModel != "" {
		cfg.VisionModel = settings.VisionModel
	}
	if settings.ImageModel != "" {
		cfg.ImageModel = settings.ImageModel
	}
	return cfg
}
