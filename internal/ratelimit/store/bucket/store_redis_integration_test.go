//go:build integration

package bucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifenavigator/internal/ratelimit/store/bucket"
	"lifenavigator/pkg/testutil/containers"
)

func TestRedisBucketStore_SlidingWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	rc.Flush(t)
	store := bucket.NewRedisBucketStore(rc.Client)
	key := "ratelimit:join:ip:203.0.113.9"

	for i := 0; i < 3; i++ {
		result, err := store.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := store.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 3, result.Limit)
	assert.GreaterOrEqual(t, result.RetryAfter, 59)

	card, err := rc.Client.ZCard(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), card)

	ttl, err := rc.Client.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Reset(ctx, key))
	result, err = store.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisBucketStore_ShortWindowExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	store := bucket.NewRedisBucketStore(rc.Client)
	key := "ratelimit:login:ip:198.51.100.7"
	require.NoError(t, store.Reset(ctx, key))

	result, err := store.Allow(ctx, key, 1, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, key, 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	time.Sleep(300 * time.Millisecond)
	result, err = store.Allow(ctx, key, 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
