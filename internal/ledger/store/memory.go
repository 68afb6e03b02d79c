package store

import (
	"context"
	"sync"
	"time"

	"tessera/internal/ledger/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

type book struct {
	position    models.Book
	holdings    map[domain.PartyID]*models.Holding
	order       []domain.PartyID
	investments []*models.Investment
}

// InMemory is the ledger store used when no database is configured. Every
// write registers a compensation so a failed operation leaves no trace.
type InMemory struct {
	mu    sync.RWMutex
	books map[domain.AssetID]*book
}

func NewInMemory() *InMemory {
	return &InMemory{books: make(map[domain.AssetID]*book)}
}

func (s *InMemory) CreateBook(ctx context.Context, b *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.AssetID]; ok {
		return sentinel.ErrConflict
	}
	s.books[b.AssetID] = &book{position: *b, holdings: make(map[domain.PartyID]*models.Holding)}
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.books, b.AssetID)
	})
	return nil
}

func (s *InMemory) GetBook(_ context.Context, asset domain.AssetID) (*models.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := b.position
	return &cp, nil
}

func (s *InMemory) UpdateBook(ctx context.Context, position *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[position.AssetID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := b.position
	b.position = *position
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		b.position = prev
	})
	return nil
}

func (s *InMemory) GetHolding(_ context.Context, asset domain.AssetID, party domain.PartyID) (*models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	h, ok := b.holdings[party]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

// RegisterHolder appends party to the investor registry with a zero balance.
func (s *InMemory) RegisterHolder(ctx context.Context, asset domain.AssetID, party domain.PartyID, at time.Time) (*models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if _, exists := b.holdings[party]; exists {
		return nil, sentinel.ErrConflict
	}
	h := &models.Holding{AssetID: asset, PartyID: party, Ordinal: len(b.order), RegisteredAt: at}
	b.holdings[party] = h
	b.order = append(b.order, party)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(b.holdings, party)
		b.order = b.order[:len(b.order)-1]
	})
	cp := *h
	return &cp, nil
}

func (s *InMemory) SetShares(ctx context.Context, asset domain.AssetID, party domain.PartyID, shares int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[asset]
	if !ok {
		return sentinel.ErrNotFound
	}
	h, ok := b.holdings[party]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := h.Shares
	h.Shares = shares
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		h.Shares = prev
	})
	return nil
}

func (s *InMemory) AppendInvestment(ctx context.Context, inv *models.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[inv.AssetID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := *inv
	b.investments = append(b.investments, &cp)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		b.investments = b.investments[:len(b.investments)-1]
	})
	return nil
}

func (s *InMemory) ListInvestments(_ context.Context, asset domain.AssetID, party domain.PartyID) ([]*models.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	var out []*models.Investment
	for _, inv := range b.investments {
		if inv.PartyID == party {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListHolders returns registered investors by ordinal. limit <= 0 means no limit.
func (s *InMemory) ListHolders(_ context.Context, asset domain.AssetID, offset, limit int) ([]*models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if offset >= len(b.order) {
		return nil, nil
	}
	end := len(b.order)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*models.Holding, 0, end-offset)
	for _, party := range b.order[offset:end] {
		cp := *b.holdings[party]
		out = append(out, &cp)
	}
	return out, nil
}

// ListPositiveHolders returns investors with a nonzero balance, by ordinal.
func (s *InMemory) ListPositiveHolders(_ context.Context, asset domain.AssetID) ([]*models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	var out []*models.Holding
	for _, party := range b.order {
		if h := b.holdings[party]; h.Shares > 0 {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) CountHolders(_ context.Context, asset domain.AssetID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[asset]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return len(b.order), nil
}

func (s *InMemory) SumShares(_ context.Context, asset domain.AssetID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[asset]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	var sum int64
	for _, h := range b.holdings {
		sum += h.Shares
	}
	return sum, nil
}

func (s *InMemory) HoldingsByParty(_ context.Context, party domain.PartyID) ([]*models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Holding
	for _, b := range s.books {
		if h, ok := b.holdings[party]; ok {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListBooks returns every book, in no particular order.
func (s *InMemory) ListBooks(_ context.Context) ([]*models.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Book, 0, len(s.books))
	for _, b := range s.books {
		cp := b.position
		out = append(out, &cp)
	}
	return out, nil
}
