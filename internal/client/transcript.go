package client

import (
	"sync"

	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

// Transcript is the ordered list of displayed messages. Overlapping turns
// append from different goroutines, so every access is locked.
type Transcript struct {
	mu       sync.RWMutex
	messages []chat.Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]chat.Message, 0, 16)}
}

// Append adds a message at the end.
func (t *Transcript) Append(msg chat.Message) {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
}

// Messages returns a copy of the transcript in display order.
func (t *Transcript) Messages() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := make([]chat.Message, len(t.messages))
	copy(copied, t.messages)
	return copied
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Clear drops every message.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.messages = t.messages[:0]
	t.mu.Unlock()
}
