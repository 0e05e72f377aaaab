package chat

import "time"

// DefaultSessionID is used by the server when a request carries no session.
const DefaultSessionID = "default"

// Session captures a server-side conversation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Entry is one remembered turn half within a session.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
