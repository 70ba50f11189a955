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

func TestChecklistRepository_Lifecycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewChecklistRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "ana")
	triglav := testutil.CreatePeak(t, db, "Triglav", 2864, models.RangeJulianAlps)
	stol := testutil.CreatePeak(t, db, "Stol", 2236, models.RangeKaravanke)

	item := &models.ChecklistItem{UserID: u.ID, PeakID: triglav.ID, Status: models.ChecklistWishlist}
	require.NoError(t, repo.Create(ctx, item))
	require.NoError(t, repo.Create(ctx, &models.ChecklistItem{UserID: u.ID, PeakID: stol.ID, Status: models.ChecklistWishlist}))

	err := repo.Create(ctx, &models.ChecklistItem{UserID: u.ID, PeakID: triglav.ID, Status: models.ChecklistWishlist})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	require.NoError(t, repo.MarkVisited(ctx, item.ID, time.Now()))
	err = repo.MarkVisited(ctx, item.ID, time.Now())
	assert.True(t, models.IsCode(err, models.CodeConflict), "a visited row cannot be visited again")

	visited, err := repo.VisitedPeaks(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, visited, 1)
	assert.Equal(t, "Triglav", visited[0].Name)

	all, err := repo.ListByUser(ctx, u.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	wish, err := repo.ListByUser(ctx, u.ID, models.ChecklistWishlist)
	require.NoError(t, err)
	require.Len(t, wish, 1)
	assert.Equal(t, "Stol", wish[0].Peak.Name)

	require.NoError(t, repo.SetPictures(ctx, item.ID, models.StringList{"a", "b"}))
	got, err := repo.Get(ctx, u.ID, triglav.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"a", "b"}, got.Pictures)

	require.NoError(t, repo.Delete(ctx, item.ID))
	assert.True(t, models.IsCode(repo.Delete(ctx, item.ID), models.CodeNotFound))

	missing, err := repo.Get(ctx, u.ID, triglav.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestChecklistRepository_DeleteByUser(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewChecklistRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "bor")
	other := testutil.CreateUser(t, db, "cene")
	p := testutil.CreatePeak(t, db, "Snežnik", 1796, models.RangeOther)
	require.NoError(t, repo.Create(ctx, &models.ChecklistItem{UserID: u.ID, PeakID: p.ID, Status: models.ChecklistVisited}))
	require.NoError(t, repo.Create(ctx, &models.ChecklistItem{UserID: other.ID, PeakID: p.ID, Status: models.ChecklistVisited}))

	removed, err := repo.DeleteByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	n, err := repo.CountVisited(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
