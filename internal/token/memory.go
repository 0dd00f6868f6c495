package token

import (
	"context"
	"fmt"
	"sync"
)

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps token state in process memory. Used by tests and by
// callers that explicitly opt out of persistence.
type MemoryStore struct {
	mu         sync.RWMutex
	token      string
	hasToken   bool
	returnPath string
	hasReturn  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Token returns the stored session token.
func (s *MemoryStore) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasToken {
		return "", ErrNotFound
	}
	return s.token, nil
}

// SetToken replaces any previously stored token.
func (s *MemoryStore) SetToken(ctx context.Context, value string) error {
	if value == "" {
		return fmt.Errorf("token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = value
	s.hasToken = true
	return nil
}

// ClearToken removes the stored token. Clearing an absent token is not an
// error, logout relies on that.
func (s *MemoryStore) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.hasToken = false
	return nil
}

// PutReturnPath stores the pending return destination.
func (s *MemoryStore) PutReturnPath(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.returnPath = path
	s.hasReturn = true
	return nil
}

// TakeReturnPath reads and deletes the pending return destination.
func (s *MemoryStore) TakeReturnPath(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasReturn {
		return "", ErrNotFound
	}
	path := s.returnPath
	s.returnPath = ""
	s.hasReturn = false
	return path, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
