package store

import (
	"context"
	"sync"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
)

type MemoryStore struct {
	mu    sync.RWMutex
	media map[string]domain.Media
	logs  []domain.OptimizationLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		media: make(map[string]domain.Media),
	}
}

func (s *MemoryStore) Create(_ context.Context, media domain.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[media.ID] = media
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Media, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	media, ok := s.media[id]
	return media, ok, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id, status string) (domain.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	media, ok := s.media[id]
	if !ok {
		return domain.Media{}, ErrMediaNotFound
	}

	media.Status = status
	media.UpdatedAt = time.Now().UTC()
	s.media[id] = media
	return media, nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, c Completion) (domain.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	media, ok := s.media[id]
	if !ok {
		return domain.Media{}, ErrMediaNotFound
	}

	c.apply(&media)
	media.UpdatedAt = time.Now().UTC()
	s.media[id] = media
	return media, nil
}

func (s *MemoryStore) CreateOptimizationLog(_ context.Context, entry domain.OptimizationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// OptimizationLogs returns a copy of the recorded log entries.
func (s *MemoryStore) OptimizationLogs() []domain.OptimizationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OptimizationLog, len(s.logs))
	copy(out, s.logs)
	return out
}
