package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yctsai/baobei/internal/llm"
)

// stubProvider implements llm.Provider with scripted outcomes. Vision and
// image support toggle via flags so capability-skip paths can be exercised.
type stubProvider struct {
	name      string
	available bool
	chatReply string
	chatErr   error
	calls     int

	vision    bool
	visionErr error

	image    bool
	imageErr error
	imageOut []byte
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.calls++
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &llm.ChatResponse{Content: s.chatReply, Model: s.name + "-model"}, nil
}

// visionStub layers VisionChat over stubProvider.
type visionStub struct{ stubProvider }

func (s *visionStub) VisionChat(ctx context.Context, req *llm.VisionRequest) (*llm.ChatResponse, error) {
	s.calls++
	if s.visionErr != nil {
		return nil, s.visionErr
	}
	return &llm.ChatResponse{Content: s.chatReply}, nil
}

// imageStub layers GenerateImage over stubProvider.
type imageStub struct{ stubProvider }

func (s *imageStub) GenerateImage(ctx context.Context, req *llm.ImageRequest) ([]byte, error) {
	s.calls++
	if s.imageErr != nil {
		return nil, s.imageErr
	}
	return s.imageOut, nil
}

func newOrch(pinnedChat, pinnedImage string, providers ...llm.Provider) *Orchestrator {
	return New(providers, pinnedChat, pinnedImage, zerolog.Nop())
}

func TestTextReplyPrimaryWins(t *testing.T) {
	primary := &stubProvider{name: "gemini", available: true, chatReply: "嗨嗨！"}
	secondary := &stubProvider{name: "openai", available: true, chatReply: "hello"}
	o := newOrch("", "", primary, secondary)

	got, err := o.TextReply(context.Background(), "prompt", "msg")
	require.NoError(t, err)
	assert.Equal(t, "嗨嗨！", got)
	assert.Zero(t, secondary.calls, "secondary untouched when primary answers")
}

func TestTextReplyFallsThroughOnTransientFailure(t *testing.T) {
	primary := &stubProvider{name: "gemini", available: true, chatErr: errors.New("503")}
	secondary := &stubProvider{name: "openai", available: true, chatReply: "備援回覆"}
	o := newOrch("", "", primary, secondary)

	got, err := o.TextReply(context.Background(), "prompt", "msg")
	require.NoError(t, err)
	assert.Equal(t, "備援回覆", got)
	assert.Equal(t, 1, primary.calls)
}

func TestTextReplySkipsProviderWithoutCredential(t *testing.T) {
	primary := &stubProvider{name: "gemini", available: false}
	secondary := &stubProvider{name: "openai", available: true, chatReply: "ok"}
	o := newOrch("", "", primary, secondary)

	got, err := o.TextReply(context.Background(), "prompt", "msg")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Zero(t, primary.calls, "ineligible provider never called")
}

func TestTextReplyExhaustionReturnsErrNoReply(t *testing.T) {
	primary := &stubProvider{name: "gemini", available: true, chatErr: errors.New("down")}
	secondary := &stubProvider{name: "openai", available: false}
	o := newOrch("", "", primary, secondary)

	_, err := o.TextReply(context.Background(), "prompt", "msg")
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestPinnedTransientFailureReturnsDegradedText(t *testing.T) {
	primary := &stubProvider{name: "gemini", available: true, chatErr: errors.New("503")}
	secondary := &stubProvider{name: "openai", available: true, chatReply: "never"}
	o := newOrch("gemini", "", primary, secondary)

	got, err := o.TextReply(context.Background(), "prompt", "msg")
	require.NoError(t, err)
	assert.Equal(t, DegradedText, got)
	assert.Zero(t, secondary.calls, "pin never falls through to the other provider")
}

func TestPinnedProviderWithoutCredential(t *testing.T) {
	primary := &stubProvider{name: "gemini", available: false}
	secondary := &stubProvider{name: "openai", available: true, chatReply: "never"}
	o := newOrch("gemini", "", primary, secondary)

	_, err := o.TextReply(context.Background(), "prompt", "msg")
	assert.ErrorIs(t, err, ErrNoReply)
	assert.Zero(t, secondary.calls)
}

func TestVisionReplySkipsNonVisionProvider(t *testing.T) {
	// primary has no VisionChat at all; the orchestrator treats that like a
	// missing capability and moves on
	primary := &stubProvider{name: "gemini", available: true}
	secondary := &visionStub{stubProvider{name: "openai", available: true, chatReply: "看到了一隻貓"}}
	o := newOrch("", "", primary, secondary)

	got, err := o.VisionReply(context.Background(), "prompt", []byte{0xFF, 0xD8}, "這是什麼")
	require.NoError(t, err)
	assert.Equal(t, "看到了一隻貓", got)
	assert.Zero(t, primary.calls, "Chat never invoked for a vision request")
}

func TestVisionReplyPinnedDegraded(t *testing.T) {
	primary := &visionStub{stubProvider{name: "gemini", available: true, visionErr: errors.New("503")}}
	o := newOrch("gemini", "", primary)

	got, err := o.VisionReply(context.Background(), "prompt", nil, "")
	require.NoError(t, err)
	assert.Equal(t, DegradedVision, got)
}

func TestGenerateImageSuccess(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF}
	primary := &imageStub{stubProvider{name: "gemini", available: true, imageOut: jpeg}}
	o := newOrch("", "", primary)

	got, err := o.GenerateImage(context.Background(), "一張自拍")
	require.NoError(t, err)
	assert.Equal(t, jpeg, got)
}

func TestGenerateImageFallsThrough(t *testing.T) {
	primary := &imageStub{stubProvider{name: "gemini", available: true, imageErr: errors.New("quota")}}
	secondary := &imageStub{stubProvider{name: "openai", available: true, imageOut: []byte{1, 2, 3}}}
	o := newOrch("", "", primary, secondary)

	got, err := o.GenerateImage(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestGenerateImagePinnedFailure(t *testing.T) {
	primary := &imageStub{stubProvider{name: "gemini", available: true, imageErr: errors.New("503")}}
	secondary := &imageStub{stubProvider{name: "openai", available: true, imageOut: []byte{9}}}
	o := newOrch("", "gemini", primary, secondary)

	_, err := o.GenerateImage(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrNoReply, "no degraded image exists, the caller substitutes text")
	assert.Zero(t, secondary.calls)
}

func TestGenerateImageExhaustion(t *testing.T) {
	primary := &stubProvider{name: "gemini", available: true} // no image capability
	o := newOrch("", "", primary)

	_, err := o.GenerateImage(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestErrNoCredentialFromCallIsSkippedSilently(t *testing.T) {
	primary := &stubProvider{name: "gemini", available: true, chatErr: llm.ErrNoCredential}
	secondary := &stubProvider{name: "openai", available: true, chatReply: "ok"}
	o := newOrch("", "", primary, secondary)

	got, err := o.TextReply(context.Background(), "p", "m")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestPinnedCredentialErrorIsNotDegraded(t *testing.T) {
	// a missing credential on the pinned provider is routing, not a transient
	// failure: exhaustion, not the degraded message
	primary := &stubProvider{name: "gemini", available: true, chatErr: llm.ErrNoCredential}
	o := newOrch("gemini", "", primary)

	_, err := o.TextReply(context.Background(), "p", "m")
	assert.ErrorIs(t, err, ErrNoReply)
}
