package chat

// Request is the body posted to the chat endpoint.
type Request struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// Response is the chat endpoint reply; only Reply is consumed.
type Response struct {
	Reply string `json:"reply"`
}
