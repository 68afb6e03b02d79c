//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := NewRedis(rc.Client)
	const limit = 3

	for i := range limit {
		result, err := store.Allow(ctx, "party:alice:write", limit, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, limit-i-1, result.Remaining)
	}

	denied, err := store.Allow(ctx, "party:alice:write", limit, time.Minute)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 0, denied.Remaining)

	count, err := rc.Client.ZCard(ctx, redisKeyPrefix+"party:alice:write").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(limit), count, "a denied request leaves no entry behind")

	other, err := store.Allow(ctx, "party:bob:write", limit, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	require.NoError(t, store.Reset(ctx, "party:alice:write"))
	again, err := store.Allow(ctx, "party:alice:write", limit, time.Minute)
	require.NoError(t, err)
	assert.True(t, again.Allowed)
}

func TestRedisStoreWindowExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := NewRedis(rc.Client)
	now := time.Now()
	store.now = func() time.Time { return now }

	_, err := store.Allow(ctx, "ip:10.0.0.1:read", 1, time.Minute)
	require.NoError(t, err)
	denied, err := store.Allow(ctx, "ip:10.0.0.1:read", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	now = now.Add(2 * time.Minute)
	result, err := store.Allow(ctx, "ip:10.0.0.1:read", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
