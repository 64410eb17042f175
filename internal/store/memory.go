// Package store — in-memory CredentialStore implementation.
// Used by tests and keyless local runs. Unlike the PostgreSQL store it is
// deliberately not persisted: ciphertext blobs must never end up in ad-hoc
// files on developer machines.
package store

import (
	"context"
	"sync"
)

// MemoryStore implements CredentialStore with a mutex-guarded map.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential // key: username
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

func (m *MemoryStore) Upsert(_ context.Context, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.Username] = cred
	return nil
}

func (m *MemoryStore) Get(_ context.Context, username string) (Credential, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[username]
	return cred, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, username)
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
