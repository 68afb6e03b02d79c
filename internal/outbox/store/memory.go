package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tessera/internal/outbox"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// InMemory keeps messages in append order.
type InMemory struct {
	mu       sync.Mutex
	messages []*outbox.Message
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Append stages msg until the surrounding transaction commits; the relay
// only sees committed messages.
func (s *InMemory) Append(ctx context.Context, msg *outbox.Message) error {
	cp := *msg
	tx.OnCommit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.messages = append(s.messages, &cp)
	})
	return nil
}

func (s *InMemory) Pending(_ context.Context, limit int) ([]*outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*outbox.Message
	for _, msg := range s.messages {
		if msg.PublishedAt != nil {
			continue
		}
		cp := *msg
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			msg.PublishedAt = &at
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// All returns every message, published or not.
func (s *InMemory) All() []*outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*outbox.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		cp := *msg
		out = append(out, &cp)
	}
	return out
}
