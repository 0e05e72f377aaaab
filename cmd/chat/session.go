package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/chatwidget/internal/client"
	"github.com/zhouzirui/chatwidget/internal/config"
	"github.com/zhouzirui/chatwidget/internal/model/chat"
	"github.com/zhouzirui/chatwidget/internal/ui"
)

type session struct {
	client *client.ChatClient
	closer io.Closer
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// newSession picks the transport named by cfg and binds a client to it.
func newSession(cfg *config.ClientConfig, logger *zap.Logger) (*session, error) {
	var (
		tr     client.Transport
		closer io.Closer
	)
	switch cfg.Transport {
	case config.TransportWebSocket:
		wsURL, err := client.WebSocketURL(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		ws, err := client.NewWebSocketTransport(wsURL, nil)
		if err != nil {
			return nil, err
		}
		tr, closer = ws, ws
	default:
		h, err := client.NewHTTPTransport(cfg.Endpoint, nil)
		if err != nil {
			return nil, err
		}
		tr = h
	}

	c, err := client.New(client.Options{
		SessionID:    cfg.SessionID,
		Transport:    tr,
		Logger:       logger,
		DiscardStale: cfg.DiscardStale,
	})
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	return &session{client: c, closer: closer}, nil
}

// lineInput is the input field of line mode: the line just read.
type lineInput struct {
	value string
}

func (l *lineInput) Value() string     { return l.value }
func (l *lineInput) SetValue(v string) { l.value = v }

// lineView prints transcript entries it has not shown yet.
type lineView struct {
	transcript *client.Transcript
	out        io.Writer
	shown      int
}

func (v *lineView) ScrollToBottom() {
	msgs := v.transcript.Messages()
	if v.shown >= len(msgs) {
		return
	}
	// The user's own line is already on screen.
	fresh := msgs[v.shown:]
	v.shown = len(msgs)
	for _, msg := range fresh {
		if msg.Sender == chat.User {
			continue
		}
		fmt.Fprintln(v.out, ui.RenderMessage(msg, ui.RenderOptions{Styles: ui.PlainStyles()}))
	}
}

// runLines reads one message per line until EOF or exit/quit.
func runLines(ctx context.Context, c *client.ChatClient, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	input := &lineInput{}
	view := &lineView{transcript: c.Transcript(), out: out, shown: c.Transcript().Len()}

	fmt.Fprintln(out, "Chatbot started! Type 'exit' to quit.")
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		input.SetValue(line)
		if _, err := c.SendMessage(ctx, input, view); err != nil {
			if errors.Is(err, client.ErrEmptyInput) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// sendOnce runs a single turn and prints the reply.
func sendOnce(ctx context.Context, c *client.ChatClient, text string, out io.Writer) error {
	reply, err := c.Send(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reply.Text)
	return nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
