package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

// Transport carries one request to the chat server and returns its reply.
type Transport interface {
	Send(ctx context.Context, req chat.Request) (chat.Response, error)
}

// InputField is the text field a turn reads from and clears.
type InputField interface {
	Value() string
	SetValue(string)
}

// Scroller is the transcript view; it is scrolled after every turn.
type Scroller interface {
	ScrollToBottom()
}

// Options configures a ChatClient.
type Options struct {
	// SessionID is sent with every request and never changes.
	SessionID string
	Transport Transport
	Logger    *zap.Logger
	// DiscardStale drops replies that arrive after a newer turn's reply.
	DiscardStale bool
	// Transcript lets callers share a transcript; a new one is created when nil.
	Transcript *Transcript
}

// ChatClient runs send/receive turns against the chat endpoint.
type ChatClient struct {
	sessionID    string
	transport    Transport
	transcript   *Transcript
	log          *zap.Logger
	discardStale bool

	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// Turn is a send whose user message is already in the transcript and whose
// reply is still pending.
type Turn struct {
	seq     uint64
	Request chat.Request
}

// New builds a client bound to one session.
func New(opts Options) (*ChatClient, error) {
	sessionID := strings.TrimSpace(opts.SessionID)
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	transcript := opts.Transcript
	if transcript == nil {
		transcript = NewTranscript()
	}

	return &ChatClient{
		sessionID:    sessionID,
		transport:    opts.Transport,
		transcript:   transcript,
		log:          logger.With(zap.String("session", sessionID)),
		discardStale: opts.DiscardStale,
	}, nil
}

// SessionID returns the fixed session identifier.
func (c *ChatClient) SessionID() string {
	return c.sessionID
}

// Transcript exposes the client's transcript.
func (c *ChatClient) Transcript() *Transcript {
	return c.transcript
}

// SendMessage runs a full turn from the input field: echo the trimmed text,
// clear the field, post it, append the reply and scroll the view. A blank
// field returns ErrEmptyInput without touching anything. Transport, server
// and decoding failures leave a failed placeholder in the transcript and are
// returned to the caller.
func (c *ChatClient) SendMessage(ctx context.Context, input InputField, view Scroller) (chat.Message, error) {
	turn, err := c.Begin(input.Value())
	if err != nil {
		return chat.Message{}, err
	}
	input.SetValue("")

	reply, err := c.Complete(ctx, turn)
	if view != nil {
		view.ScrollToBottom()
	}
	return reply, err
}

// Send runs a turn for text without any UI handles.
func (c *ChatClient) Send(ctx context.Context, text string) (chat.Message, error) {
	turn, err := c.Begin(text)
	if err != nil {
		return chat.Message{}, err
	}
	return c.Complete(ctx, turn)
}

// Begin trims text and appends it to the transcript as a user message.
func (c *ChatClient) Begin(text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	c.transcript.Append(chat.Message{Sender: chat.User, Text: text})
	return &Turn{
		seq:     seq,
		Request: chat.Request{Text: text, SessionID: c.sessionID},
	}, nil
}

// Complete issues the turn's request and appends the reply, or a failed
// placeholder when the exchange breaks. There is no timeout besides ctx.
func (c *ChatClient) Complete(ctx context.Context, turn *Turn) (chat.Message, error) {
	if turn == nil {
		return chat.Message{}, errors.New("turn is required")
	}

	resp, err := c.transport.Send(ctx, turn.Request)
	if err != nil {
		c.log.Warn("chat turn failed", zap.Uint64("seq", turn.seq), zap.Error(err))
		placeholder := chat.Message{Sender: chat.Bot, Text: placeholderText(err), Failed: true}
		if !c.commit(turn.seq, placeholder) {
			return placeholder, errors.Join(err, ErrStaleReply)
		}
		return placeholder, err
	}

	reply := chat.Message{Sender: chat.Bot, Text: resp.Reply}
	if !c.commit(turn.seq, reply) {
		c.log.Debug("dropping stale reply", zap.Uint64("seq", turn.seq))
		return reply, ErrStaleReply
	}
	c.log.Debug("chat turn completed", zap.Uint64("seq", turn.seq), zap.Int("replyLength", len(reply.Text)))
	return reply, nil
}

// commit appends msg unless stale replies are being discarded and a newer
// turn has already been applied.
func (c *ChatClient) commit(seq uint64, msg chat.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.discardStale && seq < c.applied {
		return false
	}
	if seq > c.applied {
		c.applied = seq
	}
	c.transcript.Append(msg)
	return true
}
