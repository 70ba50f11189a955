package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_DefaultsForKnownFlags(t *testing.T) {
	m := NewManager("")
	assert.True(t, m.Enabled(FriendPresence, 1))
	assert.True(t, m.Enabled(ForumPictures, 1))
	assert.False(t, m.Enabled("night_mode", 1), "unknown flags are off")

	var nilManager *Manager
	assert.True(t, nilManager.Enabled(FriendPresence, 1))
}

func TestEnabled_OnOffValues(t *testing.T) {
	m := NewManager("friend_presence=off, forum_pictures = FALSE ,night_mode=on")
	assert.False(t, m.Enabled(FriendPresence, 7))
	assert.False(t, m.Enabled(ForumPictures, 7))
	assert.True(t, m.Enabled("NIGHT_MODE", 7))
}

func TestEnabled_PercentageRollout(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,clamped=250%")
	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))
	assert.True(t, m.Enabled("clamped", 1))
	assert.False(t, m.Enabled("canary", 0), "partial rollout needs a user")

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42))
	}

	on := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("canary", id) {
			on++
		}
	}
	assert.InDelta(t, 250, on, 80)
}

func TestNewManager_SkipsMalformedEntries(t *testing.T) {
	m := NewManager(" bad ,=on,x=maybe,y=20%,z=off ")
	assert.Equal(t, []string{ForumPictures, FriendPresence, "y", "z"}, m.Names())

	snap := m.Snapshot(123)
	assert.Len(t, snap, 4)
	assert.False(t, snap["z"])
	assert.True(t, snap[FriendPresence])
}
