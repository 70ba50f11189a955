package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestHub_BroadcastReachesOnlyTheUser(t *testing.T) {
	hub := NewHub(nil)
	defer func() { _ = hub.Shutdown(context.Background()) }()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	other, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.Broadcast(1, `{"type":"friend_request"}`)

	assert.Equal(t, `{"type":"friend_request"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"friend_request"}`, string(<-b.Send))
	assert.Empty(t, other.Send)
	assert.Equal(t, 3, hub.Connections())
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub(nil)
	defer func() { _ = hub.Shutdown(context.Background()) }()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserFull)
}

func TestHub_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub(nil)
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Register(3, nil)
	require.NoError(t, err)
	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestHub_GracePeriodKeepsUserOnlineAcrossReconnect(t *testing.T) {
	hub := NewHub(nil)
	hub.presence.offlineGrace = 40 * time.Millisecond
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Register(10, nil)
	require.NoError(t, err)
	hub.UnregisterClient(c)
	assert.True(t, hub.IsOnline(context.Background(), 10))

	_, err = hub.Register(10, nil)
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)
	assert.True(t, hub.IsOnline(context.Background(), 10))
}

func TestHub_LastDisconnectGoesOffline(t *testing.T) {
	_, rdb := newTestRedis(t)
	hub := NewHub(rdb)
	hub.presence.offlineGrace = 20 * time.Millisecond
	defer func() { _ = hub.Shutdown(context.Background()) }()
	ctx := context.Background()

	a, err := hub.Register(15, nil)
	require.NoError(t, err)
	b, err := hub.Register(15, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{15}, hub.OnlineAmong(ctx, []uint{14, 15}))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.True(t, hub.IsOnline(ctx, 15))

	hub.UnregisterClient(b)
	assert.Eventually(t, func() bool {
		return !hub.IsOnline(ctx, 15)
	}, testEventuallyTimeout, testPollInterval)

	isMember, err := rdb.SIsMember(ctx, defaultOnlineSetKey, "15").Result()
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestPresence_ReaperRemovesStaleMembers(t *testing.T) {
	_, rdb := newTestRedis(t)
	p := NewPresence(rdb, PresenceConfig{ReaperInterval: time.Hour})
	defer p.Stop()
	ctx := context.Background()

	require.NoError(t, rdb.SAdd(ctx, defaultOnlineSetKey, "44", "45").Err())
	require.NoError(t, rdb.Set(ctx, lastSeenKey(45), 1, time.Minute).Err())

	assert.Equal(t, 1, p.reapOnce(ctx))
	members, err := rdb.SMembers(ctx, defaultOnlineSetKey).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"45"}, members)
	assert.True(t, p.IsOnline(ctx, 45))
	assert.False(t, p.IsOnline(ctx, 44))
}
