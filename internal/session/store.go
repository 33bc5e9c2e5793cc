// Package session keys conversation state by an explicit session identifier
// so independent conversations do not share context. State is in-memory only
// and does not survive a restart.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
)

// Session holds the conversation state for one caller-visible session.
// The orchestrator processes one turn per session at a time; Session itself
// is not safe for concurrent mutation.
type Session struct {
	ID      string
	History []models.Message
	Context models.ConversationContext
}

// Append adds one entry to the history. Entries are never removed.
func (s *Session) Append(role, content string) {
	s.History = append(s.History, models.Message{Role: role, Content: content})
}

// Window returns the most recent n history entries.
func (s *Session) Window(n int) []models.Message {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Store is an in-memory session registry keyed by session id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it if needed. An empty id
// allocates a fresh session with a generated identifier.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if s, ok := st.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id}
	st.sessions[id] = s
	return s
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
