package repository

import (
	"context"
	"testing"

	"gorahrib/internal/models"
	"gorahrib/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_FeedAndLikes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	likes := NewLikeRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()

	ana := testutil.CreateUser(t, db, "ana")
	bor := testutil.CreateUser(t, db, "bor")

	var ids []uint
	for i := 0; i < 3; i++ {
		p := &models.ForumPost{UserID: ana.ID, Title: "Vzpon", Content: "Lepo je bilo", Category: models.CategoryHike}
		require.NoError(t, posts.Create(ctx, p))
		ids = append(ids, p.ID)
	}

	require.NoError(t, likes.Create(ctx, ids[0], bor.ID))
	assert.True(t, models.IsCode(likes.Create(ctx, ids[0], bor.ID), models.CodeConflict))
	require.NoError(t, posts.AdjustLikes(ctx, ids[0], 1))

	page, total, err := posts.Feed(ctx, []uint{ana.ID}, 2, 0, bor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)

	got, err := posts.GetByID(ctx, ids[0], bor.ID)
	require.NoError(t, err)
	assert.True(t, got.Liked)
	assert.Equal(t, int64(1), got.Likes)
	assert.Equal(t, "ana", got.User.Username)

	empty, total, err := posts.Feed(ctx, nil, 10, 0, bor.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Zero(t, total)

	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: ids[1], UserID: bor.ID, Content: "Bravo"}))
	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: ids[1], UserID: bor.ID, Content: "Še enkrat"}))
	perPost, err := comments.CountByPostForUser(ctx, bor.ID)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{ids[1]: 2}, perPost)

	removed, err := likes.Delete(ctx, ids[0], bor.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = likes.Delete(ctx, ids[0], bor.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, posts.AdjustLikes(ctx, ids[0], -3))
	got, err = posts.GetByID(ctx, ids[0], 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Likes)
}

func TestPostRepository_Announcements(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "ana")
	a := testutil.CreateAchievement(t, db, "Očak", "Obišči Triglav")
	announcement := &models.ForumPost{UserID: u.ID, AchievementID: &a.ID, Title: "x", Content: "y", Category: models.CategoryAchievement}
	require.NoError(t, posts.Create(ctx, announcement))
	require.NoError(t, posts.Create(ctx, &models.ForumPost{UserID: u.ID, Title: "x", Content: "y", Category: models.CategoryHike}))

	found, err := posts.Announcements(ctx, u.ID, []uint{a.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].IsAnnouncement())

	require.NoError(t, posts.DeleteByIDs(ctx, []uint{announcement.ID}))
	n, err := posts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
