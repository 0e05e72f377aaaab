package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyContent    = errors.New("message content is required")
)

// Service keeps conversation memory per session id, in process only.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Entry
}

// NewService bootstraps an empty memory.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Entry),
	}
}

// EnsureSession returns the session with id, creating it on first use.
// A blank id maps to the shared default session.
func (s *Service) EnsureSession(_ context.Context, id string) chat.Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = chat.DefaultSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return session
	}
	session := chat.Session{ID: id, CreatedAt: time.Now().UTC()}
	s.sessions[id] = session
	s.messages[id] = make([]chat.Entry, 0, 16)
	return session
}

// SaveMessage appends an entry to its session's history.
func (s *Service) SaveMessage(_ context.Context, entry chat.Entry) (chat.Entry, error) {
	if entry.Content == "" {
		return chat.Entry{}, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[entry.SessionID]; !ok {
		return chat.Entry{}, ErrSessionNotFound
	}

	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.messages[entry.SessionID] = append(s.messages[entry.SessionID], entry)
	return entry, nil
}

// LoadTranscript returns stored entries for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Entry, len(entries))
	copy(copied, entries)
	return copied, nil
}
