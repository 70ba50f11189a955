package service

import (
	"context"
	"testing"

	"gorahrib/internal/models"
	"gorahrib/internal/notifications"
	"gorahrib/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRequestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alenka")
	bob := testutil.CreateUser(t, f.db, "bostjan")

	_, err := f.friends.SendFriendRequest(ctx, alice.ID, alice.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	req, err := f.friends.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusPending, req.Status)
	assert.Contains(t, f.pub.types(bob.ID), notifications.EventFriendRequest)

	_, err = f.friends.SendFriendRequest(ctx, alice.ID, bob.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	_, err = f.friends.SendFriendRequest(ctx, bob.ID, alice.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	status, requestID, _, err := f.friends.GetFriendshipStatus(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending_received", status)
	assert.Equal(t, req.ID, requestID)

	pending, err := f.friends.GetPendingRequests(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = f.friends.AcceptFriendRequest(ctx, alice.ID, req.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	accepted, err := f.friends.AcceptFriendRequest(ctx, bob.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusAccepted, accepted.Status)
	assert.Contains(t, f.pub.types(alice.ID), notifications.EventFriendAccepted)

	_, err = f.friends.AcceptFriendRequest(ctx, bob.ID, req.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	status, _, _, err = f.friends.GetFriendshipStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "friends", status)
	f.assertCounters(t, alice.ID)
	f.assertCounters(t, bob.ID)

	_, err = f.friends.RemoveFriend(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.friends.RemoveFriend(ctx, bob.ID, alice.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Equal(t, int64(0), testutil.Reload(t, f.db, alice.ID).FriendsCount)
	f.assertCounters(t, bob.ID)
}

func TestRejectFriendRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "matej")
	b := testutil.CreateUser(t, f.db, "petra")
	c := testutil.CreateUser(t, f.db, "saso")

	req, err := f.friends.SendFriendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = f.friends.RejectFriendRequest(ctx, c.ID, req.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	_, err = f.friends.RejectFriendRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)
	status, _, _, err := f.friends.GetFriendshipStatus(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "none", status)
	f.assertCounters(t, a.ID)
}

func TestFriendProfileAndPeaksMap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	me := testutil.CreateUser(t, f.db, "andrej")
	friend := testutil.CreateUser(t, f.db, "barbara")
	other := testutil.CreateUser(t, f.db, "cene")
	storzic := testutil.CreatePeak(t, f.db, "Storžič", 2132, models.RangeKamnikSavinjaAlps)
	boc := testutil.CreatePeak(t, f.db, "Boč", 980, models.RangeOther)

	f.befriend(t, me.ID, friend.ID)
	f.climb(t, friend.ID, storzic.ID)
	f.climb(t, friend.ID, boc.ID)
	f.climb(t, other.ID, storzic.ID)

	profile, err := f.friends.GetFriendProfile(ctx, me.ID, friend.ID)
	require.NoError(t, err)
	assert.Equal(t, "barbara", profile.User.Username)
	assert.Len(t, profile.VisitedPeaks, 2)

	_, err = f.friends.GetFriendProfile(ctx, me.ID, other.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	m, err := f.friends.GetFriendsPeaksMap(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, "Boč", m[0].Peak.Name)
	assert.Equal(t, "Storžič", m[1].Peak.Name)
	require.Len(t, m[1].Friends, 1)
	assert.Equal(t, "barbara", m[1].Friends[0].Username)

	empty, err := f.friends.GetFriendsPeaksMap(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
