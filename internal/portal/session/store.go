package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound reports a missing or expired session.
var ErrNotFound = errors.New("session: not found")

// Store persists sessions keyed by an opaque key (the fingerprint of the
// cookie token, never the token itself).
type Store interface {
	Get(ctx context.Context, key string) (*Session, error)
	Put(ctx context.Context, key string, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store for development and tests. Expiry is
// lazy: lapsed entries are dropped on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Session, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	s := entry.session
	return &s, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, s *Session, ttl time.Duration) error {
	stored := *s
	// Same contract as the serialized stores: the record is keyed by the
	// token fingerprint and must not retain the token.
	stored.ID = ""

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{session: stored, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
