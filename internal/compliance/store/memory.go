package store

import (
	"context"
	"sync"

	"tessera/internal/compliance/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// InMemory is the allowlist store used when no database is configured.
type InMemory struct {
	mu        sync.RWMutex
	approvals map[domain.PartyID]models.Approval
}

func NewInMemory() *InMemory {
	return &InMemory{approvals: make(map[domain.PartyID]models.Approval)}
}

func (s *InMemory) Get(_ context.Context, party domain.PartyID) (*models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	approval, ok := s.approvals[party]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &approval, nil
}

func (s *InMemory) Save(ctx context.Context, approval *models.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.approvals[approval.PartyID]
	s.approvals[approval.PartyID] = *approval
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.approvals[approval.PartyID] = prev
		} else {
			delete(s.approvals, approval.PartyID)
		}
	})
	return nil
}
