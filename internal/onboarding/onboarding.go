// Package onboarding drives the first-contact configuration dialogue: pick a
// persona, name yourself, name the companion. Session state lives in memory;
// only the committed result is persisted.
package onboarding

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/yctsai/baobei/internal/persona"
	"github.com/yctsai/baobei/internal/store"
)

// Step is the position in the onboarding dialogue.
type Step int

const (
	// ChoosingPersona waits for a persona selection.
	ChoosingPersona Step = iota
	// EnteringUserName waits for the user's own name.
	EnteringUserName
	// ConfirmingGirlfriendName waits for the companion's name, or a keep-default.
	ConfirmingGirlfriendName
)

// name length bounds in runes, not bytes
const (
	minNameRunes = 1
	maxNameRunes = 20
)

// session is one user's in-flight dialogue. Discarded on process restart; the
// dialogue simply starts over.
type session struct {
	step       Step
	personaID  persona.ID
	userName   string
	customName bool // next input is the custom companion name, not a keep/change choice
}

// Manager owns the per-user onboarding sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	store    store.Store
	catalog  *persona.Catalog
	log      zerolog.Logger
}

// NewManager creates an onboarding manager over the given store and catalog.
func NewManager(st store.Store, catalog *persona.Catalog, log zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*session),
		store:    st,
		catalog:  catalog,
		log:      log.With().Str("component", "onboarding").Logger(),
	}
}

// Start begins or short-circuits the dialogue for userID. A user whose record
// is already committed gets a welcome-back message and no session; any
// in-flight dialogue (an uncommitted reset, for example) is discarded so the
// next message goes to the reply path.
func (m *Manager) Start(userID string) string {
	if cfg := m.store.Get(userID); cfg.Onboarded() {
		m.mu.Lock()
		delete(m.sessions, userID)
		m.mu.Unlock()

		p := m.catalog.Resolve(cfg.GirlfriendType)
		name := cfg.GirlfriendName
		if name == "" {
			name = persona.DefaultGirlfriendName
		}
		return fmt.Sprintf("歡迎回來！%s（%s）正在等你呢 ❤️\n直接跟我聊天吧，或輸入 /reset 重新設定。", name, p.DisplayName)
	}
	return m.begin(userID)
}

// Reset discards any committed record's effect by starting a fresh dialogue.
// The old record stays until the new one is committed.
func (m *Manager) Reset(userID string) string {
	return m.begin(userID)
}

func (m *Manager) begin(userID string) string {
	m.mu.Lock()
	m.sessions[userID] = &session{step: ChoosingPersona}
	m.mu.Unlock()
	return m.personaMenu()
}

// InProgress reports whether userID has an active dialogue.
func (m *Manager) InProgress(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// Handle consumes one message of an active dialogue and returns the next
// prompt. The second return reports whether the message was configuration
// input: in the name-confirmation step, free text the user never announced as
// a name belongs to the normal chat path, and the caller routes it there.
// Calling Handle without an active session restarts the dialogue rather than
// panicking.
func (m *Manager) Handle(userID, text string) (string, bool) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	m.mu.Unlock()
	if !ok {
		return m.begin(userID), true
	}

	text = strings.TrimSpace(text)

	switch s.step {
	case ChoosingPersona:
		return m.handlePersonaChoice(userID, s, text), true
	case EnteringUserName:
		return m.handleUserName(s, text), true
	case ConfirmingGirlfriendName:
		return m.handleGirlfriendName(userID, s, text)
	default:
		return m.begin(userID), true
	}
}

func (m *Manager) handlePersonaChoice(userID string, s *session, text string) string {
	p, ok := m.matchPersona(text)
	if !ok {
		return "抱歉，我不認得這個選項。\n\n" + m.personaMenu()
	}
	s.personaID = p.ID
	s.step = EnteringUserName
	m.log.Debug().Str("user", userID).Str("persona", string(p.ID)).Msg("persona chosen")
	return fmt.Sprintf("好的，你選擇了「%s」💕\n那我該怎麼稱呼你呢？（1-20 個字）", p.DisplayName)
}

func (m *Manager) handleUserName(s *session, text string) string {
	if !validName(text) {
		return "這個名字不太行耶，名字要 1 到 20 個字，再試一次吧！"
	}
	s.userName = text
	s.step = ConfirmingGirlfriendName
	return fmt.Sprintf("%s，很高興認識你 😊\n要幫我取個名字嗎？輸入「好」沿用預設的「%s」，或輸入「取名」自己幫我取一個。\n也可以先跟我聊聊天，之後再決定～", text, persona.DefaultGirlfriendName)
}

// handleGirlfriendName resolves the keep-default / customize choice. Until
// the user says 取名, free text is ordinary conversation and stays unconsumed.
func (m *Manager) handleGirlfriendName(userID string, s *session, text string) (string, bool) {
	if s.customName {
		if !validName(text) {
			return "這個名字不太行耶，名字要 1 到 20 個字，再試一次吧！", true
		}
		return m.commit(userID, s, text), true
	}
	switch text {
	case "好", "ok", "OK", "Ok", "預設":
		return m.commit(userID, s, persona.DefaultGirlfriendName), true
	case "取名", "改名":
		s.customName = true
		return "好呀，想叫我什麼呢？（1-20 個字）", true
	}
	return "", false
}

// commit persists the finished record and ends the session. A store failure
// keeps the session alive so the user can retry by answering again.
func (m *Manager) commit(userID string, s *session, girlfriendName string) string {
	cfg := store.UserConfig{
		GirlfriendType: s.personaID,
		GirlfriendName: girlfriendName,
		UserName:       s.userName,
	}
	if err := m.store.Put(userID, cfg); err != nil {
		m.log.Error().Err(err).Str("user", userID).Msg("persist user config")
		return "哎呀，設定存檔失敗了，請再回覆一次試試。"
	}

	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()

	p := m.catalog.Resolve(s.personaID)
	return fmt.Sprintf("設定完成！我是%s（%s），%s，以後請多多指教 ❤️\n來跟我聊天吧！", girlfriendName, p.DisplayName, s.userName)
}

// matchPersona accepts a 1-based menu index, a persona id, or a display name.
func (m *Manager) matchPersona(text string) (persona.Persona, bool) {
	personas := m.catalog.All()
	if n, err := strconv.Atoi(text); err == nil {
		if n >= 1 && n <= len(personas) {
			return personas[n-1], true
		}
		return persona.Persona{}, false
	}
	for _, p := range personas {
		if strings.EqualFold(text, string(p.ID)) || text == p.DisplayName {
			return p, true
		}
	}
	return persona.Persona{}, false
}

func (m *Manager) personaMenu() string {
	var sb strings.Builder
	sb.WriteString("嗨！我是你的專屬女友 💕 先選一個你喜歡的類型吧：\n")
	for i, p := range m.catalog.All() {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p.DisplayName)
	}
	sb.WriteString("輸入編號或名稱選擇。")
	return sb.String()
}

func validName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= minNameRunes && n <= maxNameRunes
}
