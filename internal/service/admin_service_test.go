package service

import (
	"context"
	"testing"

	"gorahrib/internal/models"
	"gorahrib/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeAdmin(t *testing.T, f *fixture, name string) *models.User {
	t.Helper()
	u := testutil.CreateUser(t, f.db, name)
	require.NoError(t, f.db.Model(u).Update("role", models.RoleAdmin).Error)
	u.Role = models.RoleAdmin
	return u
}

func TestToggleBan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := makeAdmin(t, f, "skrbnik")
	user := testutil.CreateUser(t, f.db, "kristina")

	_, err := f.admin.ToggleBan(ctx, admin.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	banned, err := f.admin.ToggleBan(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusInactive, banned.Status)

	restored, err := f.admin.ToggleBan(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, restored.Status)
	assert.Equal(t, models.UserStatusActive, testutil.Reload(t, f.db, user.ID).Status)
}

func TestDeleteUserFixesSurvivingCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := makeAdmin(t, f, "skrbnik")
	doomed := testutil.CreateUser(t, f.db, "odhajam")
	friend := testutil.CreateUser(t, f.db, "ostajam")
	peak := testutil.CreatePeak(t, f.db, "Kanin", 2587, models.RangeJulianAlps)
	testutil.CreateAchievement(t, f.db, "Prvi koraki", "Obišči 1 vrh")

	f.befriend(t, doomed.ID, friend.ID)
	f.climb(t, doomed.ID, peak.ID)
	f.climb(t, friend.ID, peak.ID)
	_, err := f.checklist.AddPictures(ctx, doomed.ID, peak.ID, []UploadFile{pngUpload(t, "kanin.png")})
	require.NoError(t, err)

	friendPost := f.post(t, friend.ID, "Kanin s prijateljem")
	_, err = f.comments.CreateComment(ctx, CreateCommentInput{UserID: doomed.ID, PostID: friendPost.ID, Content: "Bilo je super"})
	require.NoError(t, err)
	_, err = f.posts.ToggleLike(ctx, doomed.ID, friendPost.ID)
	require.NoError(t, err)
	ownPost := f.post(t, doomed.ID, "Moj zadnji")
	_, err = f.comments.CreateComment(ctx, CreateCommentInput{UserID: friend.ID, PostID: ownPost.ID, Content: "Škoda"})
	require.NoError(t, err)

	assert.True(t, models.IsCode(f.admin.DeleteUser(ctx, admin.ID, admin.ID), models.CodeValidation))
	require.NoError(t, f.admin.DeleteUser(ctx, admin.ID, doomed.ID))

	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.User{}, "id = ?", doomed.ID))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.ChecklistItem{}, "user_id = ?", doomed.ID))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.UserAchievement{}, "user_id = ?", doomed.ID))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.ForumPost{}, "user_id = ?", doomed.ID))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Comment{}, "post_id = ?", ownPost.ID))
	f.assertCounters(t, friend.ID)

	got, err := f.posts.GetPost(ctx, friendPost.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Likes)
	assert.Equal(t, int64(0), got.CommentCount)

	var reloaded models.Peak
	require.NoError(t, f.db.First(&reloaded, peak.ID).Error)
	assert.Equal(t, int64(1), reloaded.ClimbCount)
	assert.Len(t, f.store.DeletedURLs(), 1)

	stats, err := f.admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalVisited)
	assert.Equal(t, int64(1), stats.TotalPeaks)
	assert.Equal(t, int64(1), stats.TotalAchievements)
}

func TestAdminsCannotBeDeleted(t *testing.T) {
	f := newFixture(t)
	a := makeAdmin(t, f, "prvi")
	b := makeAdmin(t, f, "drugi")
	err := f.admin.DeleteUser(context.Background(), a.ID, b.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
}
