// Package tui provides the terminal chat front end: a scrollback viewport
// over an input line, driving the conversation engine directly. Generated
// images cannot render in a terminal, so they show as a placeholder line.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yctsai/baobei/internal/bot"
)

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")).
			Bold(true)

	imageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// replyMsg carries the engine's answer back into the update loop.
type replyMsg struct {
	resp bot.Response
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	engine   *bot.Engine
	userID   string
	viewport viewport.Model
	input    textinput.Model
	lines    []string
	waiting  bool
	ready    bool
}

// New creates the chat model. userID keys the persisted companion
// configuration, so the same id resumes the same relationship.
func New(engine *bot.Engine, userID string) Model {
	input := textinput.New()
	input.Placeholder = "跟她說點什麼吧…（/help 顯示指令，Ctrl+C 離開）"
	input.Focus()
	input.CharLimit = 2000

	return Model{
		engine: engine,
		userID: userID,
		input:  input,
	}
}

// Init starts the session with the /start greeting.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.send("/start"))
}

// Update handles key events and engine replies.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		inputHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight
		}
		m.input.Width = msg.Width - 6
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.appendLine(userStyle.Render("你") + "：" + text)
			m.waiting = true
			return m, m.send(text)
		}

	case replyMsg:
		m.waiting = false
		m.appendLine(botStyle.Render("她") + "：" + msg.resp.Text)
		if len(msg.resp.ImageJPEG) > 0 {
			m.appendLine(imageStyle.Render(fmt.Sprintf("📷 傳來一張照片（%d bytes）", len(msg.resp.ImageJPEG))))
		}
		m.appendLine("")
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the scrollback and the input line.
func (m Model) View() string {
	if !m.ready {
		return "載入中…"
	}
	return m.viewport.View() + "\n" + inputBoxStyle.Render(m.input.View())
}

// send dispatches one message to the engine off the UI goroutine.
func (m Model) send(text string) tea.Cmd {
	engine, userID := m.engine, m.userID
	return func() tea.Msg {
		ctx := context.Background()
		if strings.HasPrefix(text, "/") {
			return replyMsg{resp: engine.HandleCommand(ctx, userID, text)}
		}
		return replyMsg{resp: engine.HandleText(ctx, userID, text)}
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}
