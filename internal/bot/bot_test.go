package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yctsai/baobei/internal/onboarding"
	"github.com/yctsai/baobei/internal/orchestrator"
	"github.com/yctsai/baobei/internal/persona"
	"github.com/yctsai/baobei/internal/store"
	"github.com/yctsai/baobei/internal/trigger"
)

// stubResponder scripts the AI layer.
type stubResponder struct {
	textReply  string
	textErr    error
	textPrompt string // records the last system prompt seen

	visionReply string
	visionErr   error

	image        []byte
	imageErr     error
	imagePrompts []string
}

func (s *stubResponder) TextReply(ctx context.Context, systemPrompt, message string) (string, error) {
	s.textPrompt = systemPrompt
	return s.textReply, s.textErr
}

func (s *stubResponder) VisionReply(ctx context.Context, systemPrompt string, imageJPEG []byte, caption string) (string, error) {
	return s.visionReply, s.visionErr
}

func (s *stubResponder) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	s.imagePrompts = append(s.imagePrompts, prompt)
	return s.image, s.imageErr
}

// memStore is an in-memory store.Store.
type memStore struct {
	records map[string]store.UserConfig
}

func (m *memStore) Get(userID string) store.UserConfig { return m.records[userID] }
func (m *memStore) Put(userID string, c store.UserConfig) error {
	m.records[userID] = c
	return nil
}

// memRecorder captures transcript appends.
type memRecorder struct {
	entries []string
}

func (m *memRecorder) Append(userID, role, kind, content string) error {
	m.entries = append(m.entries, role+"/"+kind+": "+content)
	return nil
}

type fixture struct {
	engine    *Engine
	responder *stubResponder
	store     *memStore
	recorder  *memRecorder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	responder := &stubResponder{textReply: "好呀！"}
	st := &memStore{records: map[string]store.UserConfig{}}
	catalog := persona.NewCatalog()
	ob := onboarding.NewManager(st, catalog, zerolog.Nop())
	recorder := &memRecorder{}
	engine := New(responder, st, catalog, ob,
		trigger.NewMatcher([]string{"自拍", "海邊"}), recorder, opts, zerolog.Nop())
	return &fixture{engine: engine, responder: responder, store: st, recorder: recorder}
}

func onboarded(f *fixture, userID string) {
	f.store.records[userID] = store.UserConfig{
		GirlfriendType: persona.Highschool,
		GirlfriendName: "小美",
		UserName:       "阿明",
	}
}

func TestTextFromNewUserStartsOnboarding(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.engine.HandleText(context.Background(), "u1", "嗨")
	assert.Contains(t, resp.Text, "1.", "persona menu, not an AI reply")
}

func TestTextDuringOnboardingIsConfigInput(t *testing.T) {
	f := newFixture(t, Options{})

	f.engine.HandleCommand(context.Background(), "u1", "/start")
	resp := f.engine.HandleText(context.Background(), "u1", "1")
	assert.Contains(t, resp.Text, "溫柔可愛的女高中生")
}

func TestChatDuringNameConfirmationRoutesToReplyPath(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.engine.HandleCommand(ctx, "u1", "/start")
	f.engine.HandleText(ctx, "u1", "1")
	f.engine.HandleText(ctx, "u1", "阿明")

	// at the name-confirmation step, ordinary text is conversation, answered
	// with the catalog defaults until the record commits
	resp := f.engine.HandleText(ctx, "u1", "今天天氣真好")
	assert.Equal(t, "好呀！", resp.Text)
	assert.Contains(t, f.responder.textPrompt, persona.DefaultGirlfriendName)

	resp = f.engine.HandleText(ctx, "u1", "好")
	assert.Contains(t, resp.Text, "設定完成")
}

func TestTextReplyRendersPersonaPrompt(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")

	resp := f.engine.HandleText(context.Background(), "u1", "今天好嗎")
	assert.Equal(t, "好呀！", resp.Text)
	assert.Contains(t, f.responder.textPrompt, "小美")
	assert.Contains(t, f.responder.textPrompt, "阿明")
}

func TestGlobalSystemPromptBypassesPersona(t *testing.T) {
	f := newFixture(t, Options{SystemPrompt: "You are a pirate."})
	onboarded(f, "u1")

	f.engine.HandleText(context.Background(), "u1", "hello")
	assert.Equal(t, "You are a pirate.", f.responder.textPrompt)
}

func TestTextExhaustionFallsBackToKeywordReply(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")
	f.responder.textErr = orchestrator.ErrNoReply

	resp := f.engine.HandleText(context.Background(), "u1", "你好")
	assert.Equal(t, "你好！有什麼可以幫您的嗎？", resp.Text)

	resp = f.engine.HandleText(context.Background(), "u1", "沒有關鍵字")
	assert.Equal(t, "您好！我已收到您的訊息，會盡快回覆。", resp.Text)
}

func TestTriggerMessageGetsImage(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")
	f.responder.image = []byte{0xFF, 0xD8}

	resp := f.engine.HandleText(context.Background(), "u1", "想去海邊玩")
	assert.Equal(t, "好呀！", resp.Text)
	assert.Equal(t, []byte{0xFF, 0xD8}, resp.ImageJPEG)

	require.Len(t, f.responder.imagePrompts, 1)
	assert.Contains(t, f.responder.imagePrompts[0], "背景是海邊")
}

func TestTriggerImageFailureDegradesTextOnly(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")
	f.responder.imageErr = errors.New("quota")

	resp := f.engine.HandleText(context.Background(), "u1", "傳個自拍來")
	assert.Contains(t, resp.Text, "好呀！")
	assert.Contains(t, resp.Text, orchestrator.DegradedImage)
	assert.Nil(t, resp.ImageJPEG)
}

func TestHandleImageVisionReply(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")
	f.responder.visionReply = "這隻貓好可愛！"

	resp := f.engine.HandleImage(context.Background(), "u1", []byte{0xFF, 0xD8}, "我家的貓")
	assert.Equal(t, "這隻貓好可愛！", resp.Text)
}

func TestHandleImageFailureDegrades(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")
	f.responder.visionErr = orchestrator.ErrNoReply

	resp := f.engine.HandleImage(context.Background(), "u1", nil, "")
	assert.Equal(t, orchestrator.DegradedVision, resp.Text)
}

func TestHandleImageFromNewUserStartsOnboarding(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.engine.HandleImage(context.Background(), "u1", []byte{1}, "")
	assert.Contains(t, resp.Text, "1.")
}

func TestCommands(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")

	resp := f.engine.HandleCommand(context.Background(), "u1", "/start")
	assert.Contains(t, resp.Text, "歡迎回來")

	resp = f.engine.HandleCommand(context.Background(), "u1", "/reset")
	assert.Contains(t, resp.Text, "1.", "reset forces the menu even when onboarded")

	resp = f.engine.HandleCommand(context.Background(), "u1", "/help")
	assert.Contains(t, resp.Text, "/reset")

	resp = f.engine.HandleCommand(context.Background(), "u1", "/bogus")
	assert.Contains(t, resp.Text, "/help")
}

func TestStartAfterAbandonedResetResumesChat(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")
	ctx := context.Background()

	f.engine.HandleCommand(ctx, "u1", "/reset")
	resp := f.engine.HandleCommand(ctx, "u1", "/start")
	assert.Contains(t, resp.Text, "歡迎回來")

	// the abandoned reset session is gone: plain text is conversation again,
	// not a persona choice
	resp = f.engine.HandleText(ctx, "u1", "今天好嗎")
	assert.Equal(t, "好呀！", resp.Text)
}

func TestTranscriptRecording(t *testing.T) {
	f := newFixture(t, Options{})
	onboarded(f, "u1")

	f.engine.HandleText(context.Background(), "u1", "今天好嗎")
	require.Len(t, f.recorder.entries, 2)
	assert.Equal(t, "user/text: 今天好嗎", f.recorder.entries[0])
	assert.Equal(t, "assistant/text: 好呀！", f.recorder.entries[1])
}

func TestNilRecorderIsFine(t *testing.T) {
	f := newFixture(t, Options{})
	f.engine.recorder = nil
	onboarded(f, "u1")

	resp := f.engine.HandleText(context.Background(), "u1", "嗨")
	assert.Equal(t, "好呀！", resp.Text)
}

func TestGirlfriendNameOptionFillsMissingName(t *testing.T) {
	f := newFixture(t, Options{GirlfriendName: "小花"})
	f.store.records["u1"] = store.UserConfig{GirlfriendType: persona.Highschool, UserName: "明"}

	f.engine.HandleText(context.Background(), "u1", "嗨")
	assert.Contains(t, f.responder.textPrompt, "小花")
}
