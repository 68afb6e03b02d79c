package store

import (
	"context"
	"sync"

	"tessera/internal/payout"
	"tessera/pkg/domain"
	"tessera/pkg/platform/tx"
)

type InMemory struct {
	mu           sync.RWMutex
	instructions []*payout.Instruction
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Create records instruction once the surrounding transaction commits.
func (s *InMemory) Create(ctx context.Context, instruction *payout.Instruction) error {
	cp := *instruction
	tx.OnCommit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.instructions = append(s.instructions, &cp)
	})
	return nil
}

func (s *InMemory) ListByParty(_ context.Context, party domain.PartyID) ([]*payout.Instruction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*payout.Instruction
	for _, instruction := range s.instructions {
		if instruction.PartyID == party {
			cp := *instruction
			out = append(out, &cp)
		}
	}
	return out, nil
}

// All returns every instruction in creation order.
func (s *InMemory) All() []*payout.Instruction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*payout.Instruction, 0, len(s.instructions))
	for _, instruction := range s.instructions {
		cp := *instruction
		out = append(out, &cp)
	}
	return out
}
