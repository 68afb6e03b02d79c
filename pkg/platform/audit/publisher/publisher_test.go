package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/pkg/domain"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/audit/store/memory"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

func TestPublisher_FillsDerivedFields(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	party := domain.NewPartyID()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-7"), fixed)

	require.NoError(t, pub.Emit(ctx, audit.Event{
		PartyID: party,
		Action:  string(audit.EventSharesPurchased),
		Amount:  10,
	}))

	events, err := store.ListByParty(ctx, party)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryLedger, events[0].Category)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "req-7", events[0].RequestID)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Action:    string(audit.EventFeesUpdated),
		Timestamp: custom,
	}))

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
	assert.Equal(t, audit.CategoryGovernance, events[0].Category)
}

func TestPublisher_RequiresAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())
	assert.Error(t, pub.Emit(context.Background(), audit.Event{}))
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("disk full") }

func TestPublisher_FailsClosed(t *testing.T) {
	pub := New(failingStore{})
	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDistributionClaimed)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPublisher_EventsRollBackWithTransaction(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	runner := tx.NewSharded()

	err := runner.RunInTx(context.Background(), "asset:1", func(ctx context.Context) error {
		require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventSharesSold)}))
		return errors.New("insufficient liquidity")
	})
	require.Error(t, err)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}
