package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory VerificationStore for tests.
type MemoryStore struct {
	mu      sync.Mutex
	markers map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[string]struct{})}
}

func (s *MemoryStore) MarkComplete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[token] = struct{}{}
	return nil
}

func (s *MemoryStore) IsComplete(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.markers[token]
	return ok, nil
}

func (s *MemoryStore) Clear(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, token)
	return nil
}
