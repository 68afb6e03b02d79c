// Package outbox relays messages written inside domain transactions to the
// event stream. A message exists exactly when its transaction committed; the
// relay publishes it at least once.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Message is one pending or published outbox row.
type Message struct {
	ID            uuid.UUID
	AggregateType string
	// AggregateID is the partition key; messages for one aggregate keep their order.
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewMessage builds an unpublished message.
func NewMessage(aggregateType, aggregateID, eventType string, payload []byte, now time.Time) *Message {
	return &Message{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}
