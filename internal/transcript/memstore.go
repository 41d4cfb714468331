package transcript

import (
	"context"
	"sync"

	"github.com/calmahq/calma/internal/provider"
)

// MemStore is a thread-safe, in-memory implementation of Store.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewMemStore creates a new empty transcript store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string][]Turn)}
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// Append adds a turn to the session's transcript.
func (s *MemStore) Append(_ context.Context, sessionID string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], t)
	return nil
}

// Recent returns the n most recent turns for a session, oldest first.
func (s *MemStore) Recent(_ context.Context, sessionID string, n int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if n >= len(turns) {
		return copyTurns(turns), nil
	}
	return copyTurns(turns[len(turns)-n:]), nil
}

// All returns every turn for a session, oldest first.
func (s *MemStore) All(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTurns(s.sessions[sessionID]), nil
}

// NonSystemCount returns the number of stored non-system turns.
func (s *MemStore) NonSystemCount(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.sessions[sessionID] {
		if t.Role != provider.MessageRoleSystem {
			count++
		}
	}
	return count, nil
}

func copyTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
