package state

import (
	"context"
	"sync"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

// MemoryStore is the in-process backend for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	threads map[string]string
}

var _ contractx.ThreadStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, contactID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threadID, ok := s.threads[contactID]
	if !ok {
		return "", contractx.ErrThreadNotFound
	}
	return threadID, nil
}

func (s *MemoryStore) Claim(_ context.Context, contactID, threadID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.threads[contactID]; ok {
		return existing, nil
	}
	s.threads[contactID] = threadID
	return threadID, nil
}
