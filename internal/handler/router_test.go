package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chatwidget/internal/config"
	"github.com/zhouzirui/chatwidget/internal/model/chat"
	chatService "github.com/zhouzirui/chatwidget/internal/service/chat"
)

type upperResponder struct{}

func (upperResponder) Reply(_ context.Context, _ string, _ []chat.Entry, text string) (string, error) {
	return strings.ToUpper(text), nil
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{Port: "8080", AllowedOrigins: []string{"*"}}
}

func TestRouterServesWidget(t *testing.T) {
	r := newRouter(testServerConfig(), time.Second, chatService.NewService(), nil, nil)

	for path, want := range map[string]string{
		"/":              "<title>AI Chatbot</title>",
		"/static/app.js": "session_id",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Contains(t, rec.Body.String(), want, path)
	}
}

func TestRouterChatWithCORS(t *testing.T) {
	r := newRouter(testServerConfig(), time.Second, chatService.NewService(), upperResponder{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":"hi","session_id":"user1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://widget.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"reply":"HI"}`, rec.Body.String())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRouterWithoutModel(t *testing.T) {
	cfg := &config.Config{Server: testServerConfig(), AI: config.AIConfig{Timeout: time.Second}}
	r := NewRouter(cfg, chatService.NewService(), nil, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.JSONEq(t, `{"status":"ok","model":false}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":"hi"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
