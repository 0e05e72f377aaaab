package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

// WebSocketTransport keeps one connection to the chat server's WebSocket
// endpoint. Frames are strictly request then reply, so overlapping turns are
// serialized on the connection.
type WebSocketTransport struct {
	endpoint string
	dialer   *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketTransport dials lazily on the first Send.
func NewWebSocketTransport(endpoint string, dialer *websocket.Dialer) (*WebSocketTransport, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("websocket endpoint is required")
	}
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebSocketTransport{endpoint: endpoint, dialer: dialer}, nil
}

// WebSocketURL maps an http(s) chat endpoint to its ws(s) counterpart,
// e.g. http://host/chat -> ws://host/chat/ws.
func WebSocketURL(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Send implements Transport.
func (t *WebSocketTransport) Send(ctx context.Context, req chat.Request) (chat.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.connect(ctx)
	if err != nil {
		return chat.Response{}, err
	}

	// Closing the connection is the only way to unblock a pending read when
	// ctx ends first; a connection touched by a cancelled turn is not reused.
	stop := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-watchDone
		if ctx.Err() != nil {
			t.dropLocked()
		}
	}()

	if err := conn.WriteJSON(req); err != nil {
		t.dropLocked()
		return chat.Response{}, fmt.Errorf("%w: write frame: %w", ErrTransport, contextErr(ctx, err))
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.dropLocked()
		return chat.Response{}, fmt.Errorf("%w: read frame: %w", ErrTransport, contextErr(ctx, err))
	}

	var frame replyEnvelope
	if err := json.Unmarshal(payload, &frame); err != nil {
		return chat.Response{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if frame.Error != "" {
		return chat.Response{}, &StatusError{Message: frame.Error}
	}
	if frame.Reply == nil {
		return chat.Response{}, fmt.Errorf("%w: missing reply field", ErrMalformedResponse)
	}
	return chat.Response{Reply: *frame.Reply}, nil
}

// Close shuts the current connection, if any.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *WebSocketTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	conn, _, err := t.dialer.DialContext(ctx, t.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, t.endpoint, err)
	}
	t.conn = conn
	return conn, nil
}

func (t *WebSocketTransport) dropLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
