// Package ui draws the chat transcript in a terminal.
package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

var (
	userColor  = lipgloss.Color("#2196F3")
	botColor   = lipgloss.Color("#8BC34A")
	errorColor = lipgloss.Color("#e53935")
	mutedColor = lipgloss.Color("#6b7280")
)

// Styles holds the lipgloss styles used by Render and the View.
type Styles struct {
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	Failed    lipgloss.Style
	Status    lipgloss.Style
}

// DefaultStyles returns the colored terminal styles.
func DefaultStyles() Styles {
	return Styles{
		UserLabel: lipgloss.NewStyle().Bold(true).Foreground(userColor),
		BotLabel:  lipgloss.NewStyle().Bold(true).Foreground(botColor),
		Failed:    lipgloss.NewStyle().Italic(true).Foreground(errorColor),
		Status:    lipgloss.NewStyle().Foreground(mutedColor),
	}
}

// PlainStyles renders without any escape sequences.
func PlainStyles() Styles {
	return Styles{
		UserLabel: lipgloss.NewStyle(),
		BotLabel:  lipgloss.NewStyle(),
		Failed:    lipgloss.NewStyle(),
		Status:    lipgloss.NewStyle(),
	}
}

// RenderOptions controls how the transcript is drawn.
type RenderOptions struct {
	Styles Styles
	// Markdown, when set, formats bot replies. Failed placeholders are never
	// passed through it.
	Markdown func(string) string
}

// Render draws messages in order, one entry per line. It reads nothing but
// its arguments.
func Render(messages []chat.Message, opts RenderOptions) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(RenderMessage(msg, opts))
	}
	return b.String()
}

// RenderMessage draws a single transcript entry.
func RenderMessage(msg chat.Message, opts RenderOptions) string {
	s := opts.Styles
	switch {
	case msg.Failed:
		return s.Failed.Render("Bot: " + msg.Text)
	case msg.Sender == chat.User:
		return s.UserLabel.Render("You:") + " " + msg.Text
	default:
		text := msg.Text
		if opts.Markdown != nil {
			text = opts.Markdown(text)
		}
		return s.BotLabel.Render("Bot:") + " " + text
	}
}

// GlamourMarkdown returns a markdown formatter wrapping at width. Text the
// renderer rejects is returned unchanged.
func GlamourMarkdown(width int) (func(string) string, error) {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return func(text string) string {
		out, err := renderer.Render(text)
		if err != nil {
			return text
		}
		return strings.Trim(out, "\n")
	}, nil
}
