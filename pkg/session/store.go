// Package session provides the per-session identifier stamped on every
// event.
//
// An identifier is generated once per storage scope (a random UUID) and
// then reused for as long as the scope lives. The scope is a Store: the
// in-memory store lives as long as the process, the SQLite store survives
// restarts the way browser session storage survives reloads.
package session

import (
	"context"
	"errors"
	"sync"
)

// DefaultKey is the storage key of the session identifier.
const DefaultKey = "session_id"

// ErrStoreClosed is returned by a closed store.
var ErrStoreClosed = errors.New("session: store is closed")

// Store is a string key/value store scoped to one session.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrStoreClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.values[key] = value
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
