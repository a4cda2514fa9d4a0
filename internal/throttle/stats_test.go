package throttle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStats(t *testing.T) {
	s := NewMemoryStats()
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Event{Admitted: true, Path: "/convert"}))
	require.NoError(t, s.Record(ctx, Event{Admitted: true, Path: "/convert"}))
	require.NoError(t, s.Record(ctx, Event{Admitted: false, Path: "/convert"}))
	require.NoError(t, s.Record(ctx, Event{Admitted: false}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counters{Admitted: 2, Rejected: 2}, snap.Total)
	assert.Equal(t, map[string]Counters{"/convert": {Admitted: 2, Rejected: 1}}, snap.ByPath)
}

func TestMemoryStats_ByMinute(t *testing.T) {
	base := time.Date(2026, 10, 17, 12, 0, 30, 0, time.UTC)
	clock := base
	s := NewMemoryStats()
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Event{Admitted: true, At: base}))
	require.NoError(t, s.Record(ctx, Event{Admitted: false, At: base.Add(10 * time.Second)}))
	require.NoError(t, s.Record(ctx, Event{Admitted: true, At: base.Add(time.Minute)}))

	clock = base.Add(time.Minute)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]Counters{
		"2026-10-17T12:00Z": {Admitted: 1, Rejected: 1},
		"2026-10-17T12:01Z": {Admitted: 1},
	}, snap.ByMinute)

	// An hour later the old minutes fall out of the window and are pruned.
	clock = base.Add(RecentMinutes * time.Minute)
	require.NoError(t, s.Record(ctx, Event{Admitted: true}))

	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]Counters{
		"2026-10-17T13:00Z": {Admitted: 1},
		"2026-10-17T12:01Z": {Admitted: 1},
	}, snap.ByMinute)
	assert.Equal(t, Counters{Admitted: 3, Rejected: 1}, snap.Total)

	clock = base.Add((RecentMinutes + 1) * time.Minute)
	require.NoError(t, s.Record(ctx, Event{Admitted: true}))
	assert.Len(t, s.byMinute, 2)
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStats_Integration(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("txtconvert_test:stats:%d", time.Now().UnixNano())
	s := NewRedisStats(client, prefix, time.Minute)
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
	})

	require.NoError(t, s.Record(ctx, Event{Admitted: true, Path: "/convert"}))
	require.NoError(t, s.Record(ctx, Event{Admitted: false, Path: "/convert"}))
	require.NoError(t, s.Record(ctx, Event{Admitted: false, Path: "/convert"}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counters{Admitted: 1, Rejected: 2}, snap.Total)
	assert.Equal(t, Counters{Admitted: 1, Rejected: 2}, snap.ByPath["/convert"])
}

func TestRedisStats_ByMinute(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("txtconvert_test:stats:%d", time.Now().UnixNano())
	s := NewRedisStats(client, prefix, time.Hour)
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
	})

	base := time.Date(2026, 10, 17, 12, 0, 30, 0, time.UTC)
	s.now = func() time.Time { return base.Add(2 * time.Minute) }

	require.NoError(t, s.Record(ctx, Event{Admitted: true, At: base}))
	require.NoError(t, s.Record(ctx, Event{Admitted: false, At: base}))
	require.NoError(t, s.Record(ctx, Event{Admitted: true, At: base.Add(2 * time.Minute)}))
	// Outside the reported window.
	require.NoError(t, s.Record(ctx, Event{Admitted: true, At: base.Add(-RecentMinutes * time.Minute)}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]Counters{
		"2026-10-17T12:00Z": {Admitted: 1, Rejected: 1},
		"2026-10-17T12:02Z": {Admitted: 1},
	}, snap.ByMinute)
	assert.Equal(t, Counters{Admitted: 3, Rejected: 1}, snap.Total)
}
