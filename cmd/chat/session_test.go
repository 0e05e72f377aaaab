package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatwidget/internal/client"
	"github.com/zhouzirui/chatwidget/internal/config"
	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chat.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Text == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chat.Response{Reply: "re: " + req.Text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSession(t *testing.T, srv *httptest.Server) *session {
	t.Helper()
	cfg := &config.ClientConfig{Endpoint: srv.URL + "/chat", SessionID: "user1", Transport: config.TransportHTTP}
	sess, err := newSession(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestRunLines(t *testing.T) {
	req := require.New(t)
	sess := testSession(t, echoServer(t))

	in := strings.NewReader("hello\n   \nboom\nexit\nnever sent\n")
	var out bytes.Buffer
	req.NoError(runLines(context.Background(), sess.client, in, &out))

	text := out.String()
	req.Contains(text, "Bot: re: hello")
	req.Contains(text, "Bot: Error: the server answered with status 500")
	req.Contains(text, "Goodbye!")
	req.NotContains(text, "never sent")

	msgs := sess.client.Transcript().Messages()
	req.Len(msgs, 4)
	req.Equal(chat.Message{Sender: chat.User, Text: "hello"}, msgs[0])
	req.True(msgs[3].Failed)
}

func TestRunLinesStopsAtEOF(t *testing.T) {
	sess := testSession(t, echoServer(t))
	var out bytes.Buffer
	require.NoError(t, runLines(context.Background(), sess.client, strings.NewReader("hi"), &out))
	require.Contains(t, out.String(), "Bot: re: hi")
}

func TestSendOnce(t *testing.T) {
	sess := testSession(t, echoServer(t))

	var out bytes.Buffer
	require.NoError(t, sendOnce(context.Background(), sess.client, joinArgs([]string{"two", "words"}), &out))
	require.Equal(t, "re: two words\n", out.String())

	err := sendOnce(context.Background(), sess.client, "boom", &out)
	require.ErrorIs(t, err, client.ErrServer)
}

func TestNewSessionRejectsBadWebSocketEndpoint(t *testing.T) {
	cfg := &config.ClientConfig{Endpoint: "ftp://example.com/chat", SessionID: "user1", Transport: config.TransportWebSocket}
	_, err := newSession(cfg, zap.NewNop())
	require.Error(t, err)
}
