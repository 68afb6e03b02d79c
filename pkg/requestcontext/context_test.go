package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tessera/pkg/domain"
)

func TestRequestValues(t *testing.T) {
	ctx := context.Background()
	assert.True(t, PartyID(ctx).IsNil())
	assert.Empty(t, RequestID(ctx))
	assert.False(t, IsAdmin(ctx))

	party := domain.NewPartyID()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx = WithPartyID(ctx, party)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTime(ctx, fixed)
	ctx = WithAdmin(ctx)

	assert.Equal(t, party, PartyID(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
	assert.True(t, IsAdmin(ctx))
}
