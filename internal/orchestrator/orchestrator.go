// Package orchestrator routes each AI request across the configured providers
// in a fixed priority order, skipping ineligible ones and falling through on
// transient failures. Pinning a provider trades resilience for consistency:
// the pinned provider's transient failures surface as a fixed degraded reply
// instead of a fallback answer.
package orchestrator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/yctsai/baobei/internal/llm"
)

// Degraded replies returned when the pinned provider fails transiently. One
// per capability so the user can tell what kind of request fell over.
const (
	DegradedText   = "目前暫時無法回覆，請稍後再試。"
	DegradedVision = "目前暫時無法分析圖片並回覆，請稍後再試。"
	DegradedImage  = "目前暫時無法生成圖片，請稍後再試。"
)

// ErrNoReply means every eligible provider was tried and none produced a
// usable reply. The caller decides what the user sees.
var ErrNoReply = errors.New("orchestrator: no provider produced a reply")

// Orchestrator holds the provider chain and the pinning preferences.
type Orchestrator struct {
	providers   []llm.Provider
	pinnedChat  string
	pinnedImage string
	log         zerolog.Logger
}

// New builds an orchestrator over providers in priority order. pinnedChat
// restricts text and vision replies to the named provider; pinnedImage does
// the same for image generation. Empty strings mean no pin.
func New(providers []llm.Provider, pinnedChat, pinnedImage string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		providers:   providers,
		pinnedChat:  pinnedChat,
		pinnedImage: pinnedImage,
		log:         log.With().Str("component", "orchestrator").Logger(),
	}
}

// TextReply produces a persona-conditioned text reply. On exhaustion it
// returns ErrNoReply; on a pinned provider's transient failure it returns the
// degraded text with a nil error.
func (o *Orchestrator) TextReply(ctx context.Context, systemPrompt, message string) (string, error) {
	return o.run(ctx, o.pinnedChat, DegradedText, func(p llm.Provider) (string, error) {
		resp, err := p.Chat(ctx, &llm.ChatRequest{
			SystemPrompt: systemPrompt,
			Message:      message,
		})
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	})
}

// VisionReply produces a persona-conditioned reply about an inbound photo.
// Providers without vision support are skipped like missing credentials.
func (o *Orchestrator) VisionReply(ctx context.Context, systemPrompt string, imageJPEG []byte, caption string) (string, error) {
	return o.run(ctx, o.pinnedChat, DegradedVision, func(p llm.Provider) (string, error) {
		vp, ok := p.(llm.VisionProvider)
		if !ok {
			return "", llm.ErrUnsupported
		}
		resp, err := vp.VisionChat(ctx, &llm.VisionRequest{
			SystemPrompt: systemPrompt,
			ImageJPEG:    imageJPEG,
			Caption:      caption,
		})
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	})
}

// GenerateImage produces JPEG bytes for the prompt. Unlike the text paths the
// degraded state has no image to return, so a pinned transient failure comes
// back as ErrNoReply too; the caller substitutes the fixed text.
func (o *Orchestrator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	var result []byte
	_, err := o.run(ctx, o.pinnedImage, "", func(p llm.Provider) (string, error) {
		ip, ok := p.(llm.ImageProvider)
		if !ok {
			return "", llm.ErrUnsupported
		}
		data, err := ip.GenerateImage(ctx, &llm.ImageRequest{Prompt: prompt})
		if err != nil {
			return "", err
		}
		result = data
		return "ok", nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		// pinned transient failure surfaced as degraded text; image callers
		// get the exhaustion sentinel instead
		return nil, ErrNoReply
	}
	return result, nil
}

// run walks the provider chain. pinned narrows the chain to one provider and
// switches its transient failures to the degraded reply; otherwise every
// transient failure falls through to the next provider.
func (o *Orchestrator) run(ctx context.Context, pinned, degraded string, call func(llm.Provider) (string, error)) (string, error) {
	tried := 0
	for _, p := range o.providers {
		if pinned != "" && p.Name() != pinned {
			continue
		}
		if !p.Available() {
			o.log.Debug().Str("provider", p.Name()).Msg("skipping provider without credential")
			continue
		}
		tried++

		out, err := call(p)
		if err == nil {
			return out, nil
		}
		switch {
		case errors.Is(err, llm.ErrNoCredential):
			o.log.Debug().Str("provider", p.Name()).Msg("skipping provider without credential")
		case errors.Is(err, llm.ErrUnsupported):
			o.log.Info().Str("provider", p.Name()).Msg("provider lacks requested capability, skipping")
		default:
			o.log.Warn().Err(err).Str("provider", p.Name()).Msg("provider call failed")
			if pinned != "" {
				return degraded, nil
			}
		}
	}
	if pinned != "" && tried == 0 {
		o.log.Warn().Str("provider", pinned).Msg("pinned provider is not eligible")
	}
	return "", ErrNoReply
}
