package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

// HTTPTransport posts each request as JSON to the chat endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport uses httpClient, or a client without timeout when nil.
func NewHTTPTransport(endpoint string, httpClient *http.Client) (*HTTPTransport, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("chat endpoint is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPTransport{endpoint: endpoint, client: httpClient}, nil
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req chat.Request) (chat.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return chat.Response{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return chat.Response{}, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return chat.Response{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return chat.Response{}, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return chat.Response{}, &StatusError{
			StatusCode: httpResp.StatusCode,
			Message:    errorMessage(payload),
		}
	}

	return decodeReply(payload)
}

// replyEnvelope tells an absent reply apart from an empty one.
type replyEnvelope struct {
	Reply *string `json:"reply"`
	Error string  `json:"error,omitempty"`
}

func decodeReply(payload []byte) (chat.Response, error) {
	var env replyEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return chat.Response{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if env.Reply == nil {
		return chat.Response{}, fmt.Errorf("%w: missing reply field", ErrMalformedResponse)
	}
	return chat.Response{Reply: *env.Reply}, nil
}

// errorMessage pulls {"error": "..."} out of a failed response, if present.
func errorMessage(payload []byte) string {
	var env replyEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return ""
	}
	return env.Error
}
