package memory

import (
	"context"
	"slices"
	"sync"

	"tessera/pkg/domain"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/tx"
)

// InMemoryStore keeps audit events in append order. Appends made inside an
// in-memory transaction are removed again if the transaction rolls back.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     uint64
	entries []entry
}

type entry struct {
	seq   uint64
	event audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.entries = append(s.entries, entry{seq: seq, event: event})
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = slices.DeleteFunc(s.entries, func(e entry) bool { return e.seq == seq })
	})
	return nil
}

// ListByParty returns the events that name party as subject.
func (s *InMemoryStore) ListByParty(_ context.Context, party domain.PartyID) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.PartyID == party }), nil
}

// ListByAsset returns the events recorded against asset.
func (s *InMemoryStore) ListByAsset(_ context.Context, asset domain.AssetID) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.AssetID == asset }), nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	return s.filter(func(audit.Event) bool { return true }), nil
}

func (s *InMemoryStore) filter(keep func(audit.Event) bool) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.entries {
		if keep(e.event) {
			out = append(out, e.event)
		}
	}
	return out
}
