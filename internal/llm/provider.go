// Package llm provides the AI provider implementations for baobei.
// Supports Google Gemini (primary) and OpenAI (secondary) for text chat,
// vision-conditioned chat, and image generation.
package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// MaxErrorBodySize limits how much of an error response body is read (1MB).
const MaxErrorBodySize = 1 * 1024 * 1024

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Sentinel failure reasons. Anything else returned from a provider call is a
// transient failure and subject to the orchestrator's fallback policy.
var (
	// ErrNoCredential means the provider has no API key configured. Skipping
	// it is routine routing, not an error condition.
	ErrNoCredential = errors.New("llm: no API key configured")

	// ErrUnsupported means the provider does not implement the requested
	// capability (vision, image generation).
	ErrUnsupported = errors.New("llm: capability not supported by provider")

	// ErrEmptyResponse means the provider answered but produced no usable
	// payload. Treated like a transient failure.
	ErrEmptyResponse = errors.New("llm: provider returned empty response")
)

// Provider defines the interface every AI provider implements.
type Provider interface {
	// Chat sends a persona-conditioned text message and returns the reply.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier ("gemini", "openai").
	Name() string

	// Available returns true if the provider has a credential configured.
	Available() bool
}

// VisionProvider extends Provider with image-understanding replies.
type VisionProvider interface {
	Provider
	// VisionChat sends an image (JPEG bytes) plus an optional caption and
	// returns a persona-conditioned reply about it.
	VisionChat(ctx context.Context, req *VisionRequest) (*ChatResponse, error)
}

// ImageProvider extends Provider with image generation.
type ImageProvider interface {
	Provider
	// GenerateImage produces a JPEG image for the prompt.
	GenerateImage(ctx context.Context, req *ImageRequest) ([]byte, error)
}

// ChatRequest represents a text completion request.
type ChatRequest struct {
	// Model to use; empty selects the provider's configured default.
	Model string `json:"model,omitempty"`

	// SystemPrompt carries the rendered persona prompt.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Message is the user's message text.
	Message string `json:"message"`

	// MaxTokens limits response length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness.
	Temperature float64 `json:"temperature,omitempty"`
}

// VisionRequest represents an image-understanding request.
type VisionRequest struct {
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`

	// ImageJPEG holds the inbound photo, already transport-decoded.
	ImageJPEG []byte `json:"-"`

	// Caption is the user's text accompanying the photo, may be empty.
	Caption string `json:"caption,omitempty"`
}

// ImageRequest represents an image-generation request.
type ImageRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

// ChatResponse contains a provider's text reply.
type ChatResponse struct {
	Content  string        `json:"content"`
	Model    string        `json:"model"`
	Duration time.Duration `json:"duration"`
}

// ProviderConfig contains configuration for one provider.
type ProviderConfig struct {
	// Name identifies the provider (gemini, openai).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication. Empty means the provider is ineligible.
	APIKey string

	// Model for text chat.
	Model string

	// VisionModel for image-understanding chat.
	VisionModel string

	// ImageModel for image generation.
	ImageModel string

	// MaxTokens default for text responses.
	MaxTokens int

	// Temperature default.
	Temperature float64

	// Timeout bounds each API call.
	Timeout time.Duration
}

// DefaultConfig returns the defaults for a provider. gemini-1.5-flash 404s on
// this API surface, so the text default stays on 2.0-flash.
func DefaultConfig(name string) *ProviderConfig {
	switch name {
	case "gemini":
		return &ProviderConfig{
			Name:        "gemini",
			Endpoint:    "https://generativelanguage.googleapis.com/v1beta",
			Model:       "gemini-2.0-flash",
			VisionModel: "gemini-pro-vision",
			ImageModel:  "gemini-2.0-flash-exp-image-generation",
			MaxTokens:   500,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		}
	case "openai":
		return &ProviderConfig{
			Name:        "openai",
			Endpoint:    "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			VisionModel: "gpt-4o-mini",
			ImageModel:  "dall-e-3",
			MaxTokens:   500,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		}
	default:
		return &ProviderConfig{
			Name:        name,
			MaxTokens:   500,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		}
	}
}

// baseProvider provides common functionality for HTTP-based providers.
type baseProvider struct {
	config *ProviderConfig
	client *http.Client
}

// newBaseProvider creates a base provider with defaults applied.
func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	if cfg == nil {
		cfg = DefaultConfig(providerName)
	}

	defaults := DefaultConfig(providerName)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = defaults.VisionModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaults.ImageModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.Name = providerName

	return baseProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// Available checks if the API key is configured.
func (b *baseProvider) Available() bool {
	return b.config.APIKey != ""
}
