package notify

import (
	"context"
	"sync"
	"time"
)

// MemStateStore is an in-memory StateStore. Cooldown state is lost on
// restart, which at worst sends one extra alert.
type MemStateStore struct {
	mu   sync.RWMutex
	sent map[string]time.Time
}

// NewMemStateStore creates an empty in-memory state store.
func NewMemStateStore() *MemStateStore {
	return &MemStateStore{sent: make(map[string]time.Time)}
}

// LastSentAt implements StateStore.
func (s *MemStateStore) LastSentAt(_ context.Context, email string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sent[email], nil
}

// SetLastSentAt implements StateStore.
func (s *MemStateStore) SetLastSentAt(_ context.Context, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[email] = at
	return nil
}
