package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/chatwidget/internal/client"
	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

const inputHeight = 2

// turnDoneMsg carries the outcome of a Complete call back to Update.
type turnDoneMsg struct {
	reply chat.Message
	err   error
}

// Model is the bubbletea program for an interactive chat.
type Model struct {
	ctx      context.Context
	client   *client.ChatClient
	opts     RenderOptions
	input    textinput.Model
	viewport viewport.Model
	pending  int
	lastErr  error
	width    int
	height   int
}

// NewModel builds the program state around c.
func NewModel(ctx context.Context, c *client.ChatClient, opts RenderOptions) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your message... (Enter to send, exit to leave)"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	m := Model{
		ctx:      ctx,
		client:   c,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(80, 20),
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width, 1)
		m.viewport.Height = max(msg.Height-inputHeight, 1)
		m.input.Width = max(msg.Width-4, 1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case turnDoneMsg:
		m.pending--
		if msg.err != nil && !errors.Is(msg.err, client.ErrStaleReply) {
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a turn for the current input. Replies are collected in the
// background so the user can keep typing.
func (m Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	switch strings.ToLower(value) {
	case "exit", "quit":
		return m, tea.Quit
	}

	turn, err := m.client.Begin(value)
	if err != nil {
		// Blank input.
		return m, nil
	}
	m.input.SetValue("")
	m.pending++
	m.refresh()

	ctx, c := m.ctx, m.client
	return m, func() tea.Msg {
		reply, err := c.Complete(ctx, turn)
		return turnDoneMsg{reply: reply, err: err}
	}
}

// refresh redraws the transcript and scrolls to its end.
func (m *Model) refresh() {
	m.viewport.SetContent(Render(m.client.Transcript().Messages(), m.opts))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var status string
	switch {
	case m.pending > 0:
		status = "waiting for reply..."
	case m.lastErr != nil:
		status = "last turn failed"
	default:
		status = "session " + m.client.SessionID()
	}
	return m.viewport.View() + "\n" + m.opts.Styles.Status.Render(status) + "\n" + m.input.View()
}
