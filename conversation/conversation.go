// Package conversation provides the multi-turn history store backing the
// assistant's prior-conversation context. The interface deliberately stays
// small (create, append, read back, render); alternative backends (Redis,
// Postgres) can be added in sub-packages without changing calling code.
package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversation histories keyed by conversation ID.
type Store interface {
	// Create opens a new empty conversation and returns its ID.
	Create() string
	// Append adds a message to a conversation, creating it if unknown.
	Append(id, role, content string)
	// History returns up to max most recent messages, oldest first. A
	// non-positive max returns everything.
	History(id string, max int) []Message
	// Clear removes a conversation and its messages.
	Clear(id string)
}

// InMemoryStore is a volatile Store keeping conversations in a process-local
// map. Safe for concurrent access; returned slices are copies, so callers can
// never mutate internal state.
type InMemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Message
	clock func() time.Time
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		turns: make(map[string][]Message),
		clock: time.Now,
	}
}

// Create opens a new empty conversation.
func (s *InMemoryStore) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[id] = nil
	return id
}

// Append adds one message, lazily creating the conversation.
func (s *InMemoryStore) Append(id, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[id] = append(s.turns[id], Message{
		Role:      role,
		Content:   content,
		CreatedAt: s.clock(),
	})
}

// History returns up to max most recent messages, oldest first.
func (s *InMemoryStore) History(id string, max int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.turns[id]
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clear removes a conversation.
func (s *InMemoryStore) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, id)
}

// Format renders the most recent maxTurns user/assistant exchanges of a
// conversation as the plain-text block injected into prompts. An unknown or
// empty conversation renders as the empty string.
func Format(s Store, id string, maxTurns int) string {
	msgs := s.History(id, maxTurns*2)
	if len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, m := range msgs {
		label := "User"
		if m.Role == RoleAssistant {
			label = "Assistant"
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", label, m.Content)
	}
	return b.String()
}
