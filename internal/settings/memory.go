package settings

import (
	"context"
	"sync"

	"github.com/edashow/mediaflow/internal/domain"
)

type MemoryStore struct {
	mu       sync.RWMutex
	settings domain.ImageSettings
	ok       bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (domain.ImageSettings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, m.ok, nil
}

func (m *MemoryStore) Save(_ context.Context, s domain.ImageSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = prepare(s)
	m.ok = true
	return nil
}
