package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ Store = (*InMemoryStore)(nil)

func TestInMemoryStore_CreateAppendHistory(t *testing.T) {
	s := NewInMemoryStore()
	id := s.Create()
	require.NotEmpty(t, id)

	s.Append(id, RoleUser, "hello")
	s.Append(id, RoleAssistant, "hi there")

	msgs := s.History(id, 0)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.False(t, msgs[0].CreatedAt.IsZero())
}

func TestInMemoryStore_HistoryLimitKeepsMostRecent(t *testing.T) {
	s := NewInMemoryStore()
	id := s.Create()
	for i := 0; i < 6; i++ {
		s.Append(id, RoleUser, fmt.Sprintf("msg %d", i))
	}

	msgs := s.History(id, 2)
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg 4", msgs[0].Content)
	assert.Equal(t, "msg 5", msgs[1].Content)
}

func TestInMemoryStore_LazyCreateOnAppend(t *testing.T) {
	s := NewInMemoryStore()
	s.Append("adhoc", RoleUser, "hello")
	assert.Len(t, s.History("adhoc", 0), 1)
}

func TestInMemoryStore_Clear(t *testing.T) {
	s := NewInMemoryStore()
	id := s.Create()
	s.Append(id, RoleUser, "hello")
	s.Clear(id)
	assert.Empty(t, s.History(id, 0))
}

func TestInMemoryStore_HistoryReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	id := s.Create()
	s.Append(id, RoleUser, "original")

	msgs := s.History(id, 0)
	msgs[0].Content = "mutated"

	assert.Equal(t, "original", s.History(id, 0)[0].Content)
}

func TestFormat(t *testing.T) {
	s := NewInMemoryStore()
	id := s.Create()
	s.Append(id, RoleUser, "what is RAG")
	s.Append(id, RoleAssistant, "retrieval-augmented generation")

	want := "User: what is RAG\nAssistant: retrieval-augmented generation"
	assert.Equal(t, want, Format(s, id, 5))
}

func TestFormat_EmptyConversation(t *testing.T) {
	s := NewInMemoryStore()
	assert.Equal(t, "", Format(s, "unknown", 5))
}

func TestFormat_TurnLimit(t *testing.T) {
	s := NewInMemoryStore()
	id := s.Create()
	for i := 0; i < 4; i++ {
		s.Append(id, RoleUser, fmt.Sprintf("q%d", i))
		s.Append(id, RoleAssistant, fmt.Sprintf("a%d", i))
	}

	// One turn = one user/assistant exchange.
	assert.Equal(t, "User: q3\nAssistant: a3", Format(s, id, 1))
}
