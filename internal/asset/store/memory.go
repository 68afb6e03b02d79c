package store

import (
	"context"
	"sync"

	"tessera/internal/asset/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// InMemory keeps assets in registration order.
type InMemory struct {
	mu     sync.RWMutex
	assets map[domain.AssetID]models.Asset
	order  []domain.AssetID
}

func NewInMemory() *InMemory {
	return &InMemory{assets: make(map[domain.AssetID]models.Asset)}
}

func (s *InMemory) Create(ctx context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[asset.ID]; ok {
		return sentinel.ErrConflict
	}
	s.assets[asset.ID] = *asset
	s.order = append(s.order, asset.ID)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.assets, asset.ID)
		for i := len(s.order) - 1; i >= 0; i-- {
			if s.order[i] == asset.ID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (s *InMemory) Get(_ context.Context, id domain.AssetID) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &asset, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Asset, 0, len(s.order))
	for _, id := range s.order {
		asset := s.assets[id]
		out = append(out, &asset)
	}
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.assets[asset.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.assets[asset.ID] = *asset
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.assets[asset.ID] = prev
	})
	return nil
}
