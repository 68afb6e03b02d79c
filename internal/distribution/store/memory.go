package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"tessera/internal/distribution/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

type record struct {
	distribution models.Distribution
	allocations  map[domain.PartyID]*models.Allocation
	// byOrdinal holds allocations sorted by investor ordinal.
	byOrdinal []*models.Allocation
}

// InMemory keeps distributions, allocations and custody in maps. Writes
// register compensations with the surrounding transaction.
type InMemory struct {
	mu            sync.RWMutex
	distributions map[domain.DistributionID]*record
	byAsset       map[domain.AssetID][]domain.DistributionID
	custody       map[domain.AssetID]models.Custody
}

func NewInMemory() *InMemory {
	return &InMemory{
		distributions: make(map[domain.DistributionID]*record),
		byAsset:       make(map[domain.AssetID][]domain.DistributionID),
		custody:       make(map[domain.AssetID]models.Custody),
	}
}

func (s *InMemory) CreateDistribution(ctx context.Context, d *models.Distribution, allocations []*models.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.distributions[d.ID]; ok {
		return sentinel.ErrConflict
	}
	rec := &record{
		distribution: *d,
		allocations:  make(map[domain.PartyID]*models.Allocation, len(allocations)),
		byOrdinal:    make([]*models.Allocation, 0, len(allocations)),
	}
	for _, a := range allocations {
		cp := *a
		rec.allocations[a.PartyID] = &cp
		rec.byOrdinal = append(rec.byOrdinal, &cp)
	}
	slices.SortFunc(rec.byOrdinal, func(a, b *models.Allocation) int { return a.Ordinal - b.Ordinal })
	s.distributions[d.ID] = rec
	s.byAsset[d.AssetID] = append(s.byAsset[d.AssetID], d.ID)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.distributions, d.ID)
		ids := s.byAsset[d.AssetID]
		s.byAsset[d.AssetID] = ids[:len(ids)-1]
	})
	return nil
}

func (s *InMemory) GetDistribution(_ context.Context, id domain.DistributionID) (*models.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.distributions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := rec.distribution
	return &cp, nil
}

func (s *InMemory) UpdateDistribution(ctx context.Context, d *models.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.distributions[d.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := rec.distribution
	rec.distribution = *d
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rec.distribution = prev
	})
	return nil
}

// ListByAsset returns an asset's distributions in creation order.
func (s *InMemory) ListByAsset(_ context.Context, asset domain.AssetID) ([]*models.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byAsset[asset]
	out := make([]*models.Distribution, 0, len(ids))
	for _, id := range ids {
		cp := s.distributions[id].distribution
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) GetAllocation(_ context.Context, id domain.DistributionID, party domain.PartyID) (*models.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.distributions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	a, ok := rec.allocations[party]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAllocations returns allocations with from <= ordinal < to.
func (s *InMemory) ListAllocations(_ context.Context, id domain.DistributionID, from, to int) ([]*models.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.distributions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	var out []*models.Allocation
	for _, a := range rec.byOrdinal {
		if a.Ordinal < from {
			continue
		}
		if a.Ordinal >= to {
			break
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// MaxOrdinal returns the highest allocated investor ordinal, or -1.
func (s *InMemory) MaxOrdinal(_ context.Context, id domain.DistributionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.distributions[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if len(rec.byOrdinal) == 0 {
		return -1, nil
	}
	return rec.byOrdinal[len(rec.byOrdinal)-1].Ordinal, nil
}

// MarkClaimed flips the claimed flag, failing with ErrConflict when it is
// already set.
func (s *InMemory) MarkClaimed(ctx context.Context, id domain.DistributionID, party domain.PartyID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.distributions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	a, ok := rec.allocations[party]
	if !ok {
		return sentinel.ErrNotFound
	}
	if a.Claimed {
		return sentinel.ErrConflict
	}
	a.Claimed = true
	a.ClaimedAt = &at
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		a.Claimed = false
		a.ClaimedAt = nil
	})
	return nil
}

func (s *InMemory) ListAllocationsByParty(_ context.Context, party domain.PartyID) ([]*models.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Allocation
	for _, rec := range s.distributions {
		if a, ok := rec.allocations[party]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) GetCustody(_ context.Context, asset domain.AssetID) (*models.Custody, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.custody[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemory) SaveCustody(ctx context.Context, c *models.Custody) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.custody[c.AssetID]
	s.custody[c.AssetID] = *c
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.custody[c.AssetID] = prev
			return
		}
		delete(s.custody, c.AssetID)
	})
	return nil
}

// ListDistributions returns every distribution, in no particular order.
func (s *InMemory) ListDistributions(_ context.Context) ([]*models.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Distribution, 0, len(s.distributions))
	for _, rec := range s.distributions {
		cp := rec.distribution
		out = append(out, &cp)
	}
	return out, nil
}

// ListCustody returns every asset's custody balance.
func (s *InMemory) ListCustody(_ context.Context) ([]*models.Custody, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Custody, 0, len(s.custody))
	for _, c := range s.custody {
		cp := c
		out = append(out, &cp)
	}
	return out, nil
}
