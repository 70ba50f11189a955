package repository

import (
	"context"
	"testing"
	"time"

	"gorahrib/internal/models"
	"gorahrib/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRepository_RequestAcceptRemove(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFriendRepository(db)
	ctx := context.Background()

	ana := testutil.CreateUser(t, db, "ana")
	bor := testutil.CreateUser(t, db, "bor")
	cene := testutil.CreateUser(t, db, "cene")

	req := &models.Friendship{RequesterID: ana.ID, AddresseeID: bor.ID, Status: models.FriendshipStatusPending}
	require.NoError(t, repo.Create(ctx, req))
	err := repo.Create(ctx, &models.Friendship{RequesterID: ana.ID, AddresseeID: bor.ID, Status: models.FriendshipStatusPending})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	pending, err := repo.GetPendingRequests(ctx, bor.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ana", pending[0].Requester.Username)

	sent, err := repo.GetSentRequests(ctx, ana.ID)
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	between, err := repo.GetFriendshipBetweenUsers(ctx, bor.ID, ana.ID)
	require.NoError(t, err)
	require.NotNil(t, between)
	assert.Equal(t, req.ID, between.ID)

	require.NoError(t, repo.Accept(ctx, req.ID, time.Now()))
	assert.True(t, models.IsCode(repo.Accept(ctx, req.ID, time.Now()), models.CodeNotFound))

	require.NoError(t, repo.Create(ctx, &models.Friendship{RequesterID: cene.ID, AddresseeID: ana.ID, Status: models.FriendshipStatusPending}))

	ids, err := repo.FriendIDs(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bor.ID}, ids, "pending requests are not friends")

	friends, err := repo.GetFriends(ctx, bor.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, ana.ID, friends[0].ID)

	require.NoError(t, repo.DeleteByUser(ctx, ana.ID))
	none, err := repo.GetFriendshipBetweenUsers(ctx, ana.ID, cene.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}
