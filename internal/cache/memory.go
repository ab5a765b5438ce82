package cache

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	closed  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]Entry)}
}

func (m *memoryStore) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	// Copy the payload so callers can reuse their buffer.
	cp := e
	cp.Payload = append([]byte(nil), e.Payload...)
	m.entries[e.Key] = cp
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Entry{}, false, ErrClosed
	}
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *memoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.entries), nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.entries = nil
	m.mu.Unlock()
	return nil
}
