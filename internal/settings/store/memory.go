package store

import (
	"context"
	"sync"

	"tessera/internal/settings/models"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// InMemory holds the single settings record.
type InMemory struct {
	mu       sync.RWMutex
	settings *models.Settings
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Get(_ context.Context) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.settings
	return &cp, nil
}

func (s *InMemory) Save(ctx context.Context, settings *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.settings
	cp := *settings
	s.settings = &cp
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		s.settings = prev
		s.mu.Unlock()
	})
	return nil
}
