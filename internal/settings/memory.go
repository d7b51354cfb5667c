package settings

import (
	"context"
	"sync"

	"pharmacore/pkg/domain"
)

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	value domain.Settings
	set   bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load implements Store.
func (m *MemoryStore) Load(context.Context) (domain.Settings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.set, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value, m.set = s, true
	return nil
}
