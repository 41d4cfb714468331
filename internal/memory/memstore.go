package memory

import (
	"context"
	"sync"
)

// MemStore is a thread-safe, in-memory implementation of Store.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string][]Summary
}

// NewMemStore creates a new empty summary store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string][]Summary)}
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// Append adds a summary to the session's records.
func (s *MemStore) Append(_ context.Context, sessionID string, sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], sum)
	return nil
}

// Recent returns the n most recent summaries for a session, oldest first.
func (s *MemStore) Recent(_ context.Context, sessionID string, n int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := s.sessions[sessionID]
	if n < len(sums) {
		sums = sums[len(sums)-n:]
	}
	out := make([]Summary, len(sums))
	copy(out, sums)
	return out, nil
}
