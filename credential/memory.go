package credential

import (
	"context"
	"sync"
)

// MemoryBackend keeps entries in process memory. Nothing survives a restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// GetEntries copies the named entries under one read lock.
func (m *MemoryBackend) GetEntries(_ context.Context, names ...string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(names))
	for _, name := range names {
		if v, ok := m.entries[name]; ok {
			out[name] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (m *MemoryBackend) SetEntries(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.Name] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		delete(m.entries, name)
	}
	return nil
}

// Len reports the number of stored entries.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
