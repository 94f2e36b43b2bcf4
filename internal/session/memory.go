package session

import (
	"context"
	"sync"
	"time"

	"github.com/Uni298/OSMStudio/pkg/core"
)

// MemoryStore keeps sessions in a mutex-guarded map. It is the default
// backend for single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.ExportSession
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*core.ExportSession),
	}
}

// Create persists a new session.
func (m *MemoryStore) Create(ctx context.Context, s *core.ExportSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return ErrSessionExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Get returns a copy of the session with the given ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*core.ExportSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Update applies mutate while holding the write lock, so concurrent updates
// serialize and none are lost.
func (m *MemoryStore) Update(ctx context.Context, id string, mutate func(*core.ExportSession) error) (*core.ExportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	working := s.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	m.sessions[id] = working
	return working.Clone(), nil
}

// Delete removes the session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// List returns all sessions.
func (m *MemoryStore) List(ctx context.Context) ([]*core.ExportSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*core.ExportSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
