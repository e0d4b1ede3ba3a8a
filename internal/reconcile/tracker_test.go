package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisTracker(t *testing.T) (*RedisTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTracker(client), mr
}

func TestRedisTrackerRoundTrip(t *testing.T) {
	tracker, _ := newTestRedisTracker(t)
	ctx := context.Background()

	seen, err := tracker.AlreadyProcessed(ctx, "pay_001")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, tracker.MarkProcessed(ctx, "pay_001"))

	seen, err = tracker.AlreadyProcessed(ctx, "pay_001")
	require.NoError(t, err)
	assert.True(t, seen)

	// Another payment id stays unaffected.
	seen, err = tracker.AlreadyProcessed(ctx, "pay_002")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisTrackerSetsTTL(t *testing.T) {
	tracker, mr := newTestRedisTracker(t)
	require.NoError(t, tracker.MarkProcessed(context.Background(), "pay_001"))

	ttl := mr.TTL("reconciled:payment:pay_001")
	assert.Equal(t, 30*24*time.Hour, ttl)

	mr.FastForward(31 * 24 * time.Hour)
	seen, err := tracker.AlreadyProcessed(context.Background(), "pay_001")
	require.NoError(t, err)
	assert.False(t, seen, "entry should expire after the retention window")
}

func TestRedisTrackerIgnoresEmptyID(t *testing.T) {
	tracker, mr := newTestRedisTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.MarkProcessed(ctx, ""))
	assert.Empty(t, mr.Keys())

	seen, err := tracker.AlreadyProcessed(ctx, "")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisTrackerSurfacesConnectionError(t *testing.T) {
	tracker, mr := newTestRedisTracker(t)
	mr.Close()

	_, err := tracker.AlreadyProcessed(context.Background(), "pay_001")
	assert.Error(t, err)
	assert.Error(t, tracker.MarkProcessed(context.Background(), "pay_001"))
}

func TestNewRedisTrackerNilClient(t *testing.T) {
	assert.Nil(t, NewRedisTracker(nil))
}

func TestMemoryTracker(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	seen, err := tracker.AlreadyProcessed(ctx, "pay_001")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, tracker.MarkProcessed(ctx, "pay_001"))

	seen, err = tracker.AlreadyProcessed(ctx, "pay_001")
	require.NoError(t, err)
	assert.True(t, seen)
}
