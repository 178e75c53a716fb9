// Package bot is the transport-independent conversation engine. Every frontend
// (the WebSocket gateway, the terminal chat) feeds user events in and renders
// the Response it gets back.
package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yctsai/baobei/internal/history"
	"github.com/yctsai/baobei/internal/onboarding"
	"github.com/yctsai/baobei/internal/orchestrator"
	"github.com/yctsai/baobei/internal/persona"
	"github.com/yctsai/baobei/internal/reply"
	"github.com/yctsai/baobei/internal/store"
	"github.com/yctsai/baobei/internal/trigger"
)

// Responder is the slice of the orchestrator the engine needs. Narrowed to an
// interface so tests can stub the AI layer.
type Responder interface {
	TextReply(ctx context.Context, systemPrompt, message string) (string, error)
	VisionReply(ctx context.Context, systemPrompt string, imageJPEG []byte, caption string) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Recorder is the transcript sink. Nil-able: recording can be disabled.
type Recorder interface {
	Append(userID, role, kind, content string) error
}

// Response is what the engine hands back for one inbound event. Text is always
// set; ImageJPEG accompanies it when an image was generated.
type Response struct {
	Text      string
	ImageJPEG []byte
}

// Options configures an Engine.
type Options struct {
	// SystemPrompt, when non-empty, bypasses persona rendering for every user.
	SystemPrompt string

	// GirlfriendName overrides the catalog default for users without a name.
	GirlfriendName string
}

// Engine routes user events through onboarding, triggers, and the AI layer.
type Engine struct {
	responder  Responder
	store      store.Store
	catalog    *persona.Catalog
	onboarding *onboarding.Manager
	triggers   *trigger.Matcher
	recorder   Recorder
	opts       Options
	log        zerolog.Logger
}

// New assembles an engine. recorder may be nil.
func New(responder Responder, st store.Store, catalog *persona.Catalog, ob *onboarding.Manager, triggers *trigger.Matcher, recorder Recorder, opts Options, log zerolog.Logger) *Engine {
	return &Engine{
		responder:  responder,
		store:      st,
		catalog:    catalog,
		onboarding: ob,
		triggers:   triggers,
		recorder:   recorder,
		opts:       opts,
		log:        log.With().Str("component", "bot").Logger(),
	}
}

// HandleCommand processes a slash command. Unknown commands get the help text.
func (e *Engine) HandleCommand(ctx context.Context, userID, command string) Response {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(command)), "/") {
	case "start":
		return Response{Text: e.onboarding.Start(userID)}
	case "reset":
		return Response{Text: e.onboarding.Reset(userID)}
	case "help":
		return Response{Text: helpText}
	default:
		return Response{Text: helpText}
	}
}

const helpText = "可用指令：\n/start - 開始或回到對話\n/reset - 重新設定女友類型與名字\n/help - 顯示說明\n\n直接傳訊息就能聊天，傳照片我也會回覆喔 📷"

// HandleText processes a free-text message.
func (e *Engine) HandleText(ctx context.Context, userID, text string) Response {
	cfg := e.store.Get(userID)

	if e.onboarding.InProgress(userID) {
		if prompt, consumed := e.onboarding.Handle(userID, text); consumed {
			return Response{Text: prompt}
		}
		// mid-onboarding chat runs on the defaults until the record commits
	} else if !cfg.Onboarded() {
		return Response{Text: e.onboarding.Start(userID)}
	}

	e.record(userID, history.RoleUser, history.KindText, text)

	if scene, ok := e.triggers.Match(text); ok {
		return e.imageReply(ctx, userID, cfg, text, scene)
	}

	answer, err := e.responder.TextReply(ctx, e.systemPrompt(cfg), text)
	if err != nil {
		if !errors.Is(err, orchestrator.ErrNoReply) {
			e.log.Error().Err(err).Str("user", userID).Msg("text reply failed")
		}
		answer = reply.For(text)
	}
	e.record(userID, history.RoleAssistant, history.KindText, answer)
	return Response{Text: answer}
}

// HandleImage processes an inbound photo with an optional caption. A photo is
// never configuration input, so an in-flight onboarding session is left alone.
func (e *Engine) HandleImage(ctx context.Context, userID string, imageJPEG []byte, caption string) Response {
	cfg := e.store.Get(userID)
	if !cfg.Onboarded() && !e.onboarding.InProgress(userID) {
		return Response{Text: e.onboarding.Start(userID)}
	}

	e.record(userID, history.RoleUser, history.KindVision, caption)

	answer, err := e.responder.VisionReply(ctx, e.systemPrompt(cfg), imageJPEG, caption)
	if err != nil {
		if !errors.Is(err, orchestrator.ErrNoReply) {
			e.log.Error().Err(err).Str("user", userID).Msg("vision reply failed")
		}
		answer = orchestrator.DegradedVision
	}
	e.record(userID, history.RoleAssistant, history.KindText, answer)
	return Response{Text: answer}
}

// imageReply answers a trigger-matched message with both a text reply and a
// generated photo. Either half degrades independently.
func (e *Engine) imageReply(ctx context.Context, userID string, cfg store.UserConfig, text, scene string) Response {
	p := e.catalog.Resolve(cfg.GirlfriendType)

	answer, err := e.responder.TextReply(ctx, e.systemPrompt(cfg), text)
	if err != nil {
		answer = reply.For(text)
	}

	prompt := e.catalog.RenderImagePrompt(p, scene)
	imageJPEG, err := e.responder.GenerateImage(ctx, prompt)
	if err != nil {
		e.log.Warn().Err(err).Str("user", userID).Str("scene", scene).Msg("image generation failed")
		e.record(userID, history.RoleAssistant, history.KindText, answer)
		return Response{Text: answer + "\n" + orchestrator.DegradedImage}
	}

	e.record(userID, history.RoleAssistant, history.KindImage, prompt)
	e.record(userID, history.RoleAssistant, history.KindText, answer)
	return Response{Text: answer, ImageJPEG: imageJPEG}
}

// systemPrompt renders the effective system prompt for one user. A configured
// global prompt wins over persona rendering.
func (e *Engine) systemPrompt(cfg store.UserConfig) string {
	if e.opts.SystemPrompt != "" {
		return e.opts.SystemPrompt
	}
	p := e.catalog.Resolve(cfg.GirlfriendType)
	girlfriendName := cfg.GirlfriendName
	if girlfriendName == "" {
		girlfriendName = e.opts.GirlfriendName
	}
	return e.catalog.RenderTextPrompt(p, girlfriendName, cfg.UserName)
}

func (e *Engine) record(userID, role, kind, content string) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Append(userID, role, kind, content); err != nil {
		e.log.Warn().Err(err).Str("user", userID).Msg("record transcript entry")
	}
}
