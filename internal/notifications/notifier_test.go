package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "test payload"))
	assert.NoError(t, n.Subscribe(context.Background(), func(uint, string) {}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:1", UserChannel(1))
	assert.Equal(t, "notifications:user:100", UserChannel(100))

	id, ok := ParseUserChannel("notifications:user:100")
	assert.True(t, ok)
	assert.Equal(t, uint(100), id)

	for _, bad := range []string{"notifications:user:", "notifications:user:abc", "chat:conv:1", "notifications:user:0"} {
		_, ok := ParseUserChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestEncodeEvent(t *testing.T) {
	s, err := EncodeEvent(EventFriendAccepted, map[string]uint{"user_id": 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"friend_accepted","payload":{"user_id":4}}`, s)
}

func TestNotifier_DeliversThroughHub(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	hub := NewHub(nil)
	defer func() { _ = hub.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	c, err := hub.Register(9, nil)
	require.NoError(t, err)

	payload, err := EncodeEvent(EventAchievementUnlocked, map[string]interface{}{"achievements": []string{}})
	require.NoError(t, err)
	require.NoError(t, n.PublishUser(context.Background(), 9, payload))
	require.NoError(t, n.PublishUser(context.Background(), 10, "not for you"))

	select {
	case got := <-c.Send:
		assert.Equal(t, payload, string(got))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Never(t, func() bool { return len(c.Send) > 0 }, 100*time.Millisecond, testPollInterval)
}
