// Package ui implements the terminal chat frontend with Bubble Tea.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/orderdeskai/orderdesk/internal/orchestrator"
)

// Chatter is the API surface the chat model needs; satisfied by
// client.Client.
type Chatter interface {
	Chat(ctx context.Context, sessionID, userQuery string) (*orchestrator.Result, error)
}

// message is one rendered chat entry.
type message struct {
	role    string
	content string
}

// ChatModel implements tea.Model for the chat session.
type ChatModel struct {
	chatter  Chatter
	renderer MarkdownRenderer

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	messages  []message
	sessionID string
	waiting   bool
	ready     bool
	err       error
}

// Internal messages
type chatResultMsg struct {
	result *orchestrator.Result
	err    error
}

// NewChatModel creates the chat model over the given API client.
func NewChatModel(chatter Chatter, renderer MarkdownRenderer) ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your order..."
	ti.Focus()
	ti.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return ChatModel{
		chatter:  chatter,
		renderer: renderer,
		input:    ti,
		viewport: viewport.New(80, 20),
		spin:     sp,
	}
}

// Init starts the input blink and spinner tick.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

// Update handles terminal events and chat responses.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - inputAreaHeight
		m.input.Width = msg.Width - 4
		m.ready = true
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				break
			}
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				break
			}
			m.input.Reset()
			m.messages = append(m.messages, message{role: "user", content: query})
			m.waiting = true
			m.err = nil
			m.refreshViewport()
			cmds = append(cmds, m.sendChat(query), m.spin.Tick)
		}

	case chatResultMsg:
		m.waiting = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.sessionID = msg.result.SessionID
			m.messages = append(m.messages, message{role: "assistant", content: msg.result.Response})
		}
		m.refreshViewport()

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// sendChat issues the API call off the update loop.
func (m ChatModel) sendChat(query string) tea.Cmd {
	chatter := m.chatter
	sessionID := m.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		result, err := chatter.Chat(ctx, sessionID, query)
		return chatResultMsg{result: result, err: err}
	}
}

func (m *ChatModel) refreshViewport() {
	m.viewport.SetContent(renderMessages(m.messages, m.renderer, m.viewport.Width))
	m.viewport.GotoBottom()
}

// SessionID returns the active session identifier, empty before the first
// successful exchange.
func (m ChatModel) SessionID() string {
	return m.sessionID
}
