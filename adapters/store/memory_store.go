package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
)

type memorySession struct {
	session   core.Session
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	sessions          map[string]memorySession
	mu                sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		sessions:          make(map[string]memorySession),
	}
}

// InvalidateToken marks a token as invalidated until expiry elapses
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweep(now)
	s.invalidatedTokens[tokenID] = now.Add(expiry)

	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	if time.Now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

// SaveSession stores a copy of the session until ttl elapses
func (s *MemoryStore) SaveSession(ctx context.Context, session *core.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweep(now)
	s.sessions[session.ID] = memorySession{
		session:   *session,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// GetSession returns a copy of a stored session
func (s *MemoryStore) GetSession(ctx context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, core.ErrSessionNotFound
	}

	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, core.ErrSessionNotFound
	}

	session := entry.session
	return &session, nil
}

// DeleteSession removes a session
func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// sweep drops expired entries. Callers hold the write lock.
func (s *MemoryStore) sweep(now time.Time) {
	for id, expiresAt := range s.invalidatedTokens {
		if now.After(expiresAt) {
			delete(s.invalidatedTokens, id)
		}
	}
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
}
