package client

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput reports a send with nothing but whitespace. It is a no-op,
	// callers are expected to ignore it.
	ErrEmptyInput = errors.New("empty input")
	// ErrTransport wraps failures to complete the exchange at all.
	ErrTransport = errors.New("transport failure")
	// ErrServer is wrapped by *StatusError.
	ErrServer = errors.New("server error")
	// ErrMalformedResponse reports a body that is not JSON or has no reply.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrStaleReply reports a reply dropped because a newer turn already landed.
	ErrStaleReply = errors.New("stale reply discarded")
)

// StatusError is returned when the server answers with a non-success status.
// StatusCode is zero for errors reported inside a WebSocket frame.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: status %d", e.StatusCode)
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("server error: %s", e.Message)
	}
	return fmt.Sprintf("server error: status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return ErrServer
}

// placeholderText is what the transcript shows instead of a reply.
func placeholderText(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == 0 {
			return "Error: the server could not answer"
		}
		return fmt.Sprintf("Error: the server answered with status %d", statusErr.StatusCode)
	case errors.Is(err, ErrMalformedResponse):
		return "Error: the server reply could not be read"
	default:
		return "Error: could not reach the chat server"
	}
}
