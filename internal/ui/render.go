package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// inputAreaHeight is the number of terminal rows reserved below the viewport.
const inputAreaHeight = 3

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	spinnerStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	inputBorderStyle    = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(0, 1)
)

// MarkdownRenderer renders assistant markdown for the terminal.
type MarkdownRenderer interface {
	Render(markdown string) (string, error)
}

// GlamourRenderer implements MarkdownRenderer with glamour's auto style.
type GlamourRenderer struct {
	renderer *glamour.TermRenderer
}

// NewGlamourRenderer creates a renderer wrapped to the given width.
func NewGlamourRenderer(width int) (*GlamourRenderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return &GlamourRenderer{renderer: r}, nil
}

// Render renders markdown, falling back to the raw text on error.
func (g *GlamourRenderer) Render(markdown string) (string, error) {
	out, err := g.renderer.Render(markdown)
	if err != nil {
		return markdown, err
	}
	return out, nil
}

// renderMessages renders the transcript for the viewport.
func renderMessages(messages []message, renderer MarkdownRenderer, width int) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.role {
		case "user":
			b.WriteString(userLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.content)
			b.WriteString("\n")
		default:
			b.WriteString(assistantLabelStyle.Render("OrderDesk"))
			b.WriteString("\n")
			rendered := msg.content
			if renderer != nil {
				if out, err := renderer.Render(msg.content); err == nil {
					rendered = out
				}
			}
			b.WriteString(strings.TrimRight(rendered, "\n"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// View renders the full frame.
func (m ChatModel) View() string {
	if !m.ready {
		return "starting..."
	}

	var footer string
	switch {
	case m.waiting:
		footer = m.spin.View() + " thinking..."
	case m.err != nil:
		footer = errorStyle.Render(fmt.Sprintf("error: %v", m.err))
	default:
		footer = "enter to send, esc to quit"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		inputBorderStyle.Width(m.viewport.Width-2).Render(m.input.View()),
		footer,
	)
}
