package service

import (
	"context"
	"errors"
	"testing"

	"gorahrib/internal/database"
	"gorahrib/internal/models"
	"gorahrib/internal/notifications"
	"gorahrib/internal/observability"
	"gorahrib/internal/testutil"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func (f *fixture) award(t *testing.T, userID uint) []models.Achievement {
	t.Helper()
	var awarded []models.Achievement
	require.NoError(t, f.uow.Do(context.Background(), func(tx *gorm.DB) error {
		var err error
		awarded, err = f.achievements.AwardNewAchievements(context.Background(), tx, userID)
		return err
	}))
	return awarded
}

func TestAwardIsIdempotent(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "miha")
	triglav := testutil.CreatePeak(t, f.db, "Triglav", 2864, models.RangeJulianAlps)
	testutil.CreateAchievement(t, f.db, "Prvi koraki", "Obišči 1 vrh")
	testutil.CreateAchievement(t, f.db, "Očak", "Obišči Triglav")

	res := f.climb(t, user.ID, triglav.ID)
	assert.ElementsMatch(t, []string{"Prvi koraki", "Očak"}, titles(res.NewAchievements))

	assert.Empty(t, f.award(t, user.ID))
	assert.Empty(t, f.award(t, user.ID))

	assert.Equal(t, int64(2), testutil.CountRows(t, f.db, &models.UserAchievement{}, "user_id = ?", user.ID))
	assert.Equal(t, int64(2), testutil.CountRows(t, f.db, &models.ForumPost{}, "user_id = ? AND achievement_id IS NOT NULL", user.ID))
	f.assertCounters(t, user.ID)
	assert.Contains(t, f.pub.types(user.ID), notifications.EventAchievementUnlocked)
}

func TestAwardCreatesAnnouncementPost(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "nina")
	peak := testutil.CreatePeak(t, f.db, "Stol", 2236, models.RangeKaravanke)
	ach := testutil.CreateAchievement(t, f.db, "Prvi koraki", "Obišči 1 vrh")

	f.climb(t, user.ID, peak.ID)

	var post models.ForumPost
	require.NoError(t, f.db.Where("achievement_id = ?", ach.ID).First(&post).Error)
	assert.Equal(t, user.ID, post.UserID)
	assert.Equal(t, AnnouncementTitle, post.Title)
	assert.Equal(t, "Prvi koraki - Opis: Obišči 1 vrh", post.Content)
	assert.Equal(t, models.CategoryAchievement, post.Category)
}

func TestAwardSurvivesAnnouncementFailure(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "tina")
	peak := testutil.CreatePeak(t, f.db, "Nanos", 1262, models.RangeOther)
	testutil.CreateAchievement(t, f.db, "Prvi koraki", "Obišči 1 vrh")
	require.NoError(t, f.db.Create(&models.ChecklistItem{
		UserID: user.ID, PeakID: peak.ID, Status: models.ChecklistVisited,
	}).Error)
	require.NoError(t, f.db.Migrator().DropTable(&models.ForumPost{}))

	before := promtestutil.ToFloat64(observability.AnnouncementFailures)
	awarded := f.award(t, user.ID)

	require.Len(t, awarded, 1)
	assert.Equal(t, before+1, promtestutil.ToFloat64(observability.AnnouncementFailures))
	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.UserAchievement{}, "user_id = ?", user.ID))
	assert.Equal(t, int64(1), testutil.Reload(t, f.db, user.ID).AchievementsCount)
}

func TestCountersAgreeAfterChecklistChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "jure")
	a := testutil.CreatePeak(t, f.db, "Grintovec", 2558, models.RangeKamnikSavinjaAlps)
	b := testutil.CreatePeak(t, f.db, "Skuta", 2532, models.RangeKamnikSavinjaAlps)
	c := testutil.CreatePeak(t, f.db, "Kum", 1220, models.RangeOther)
	testutil.CreateAchievement(t, f.db, "Prvi koraki", "Obišči 1 vrh")
	testutil.CreateAchievement(t, f.db, "Dvojček", "Obišči 2 vrha")

	f.climb(t, user.ID, a.ID)
	f.climb(t, user.ID, b.ID)
	_, err := f.checklist.Add(ctx, user.ID, c.ID)
	require.NoError(t, err)
	f.assertCounters(t, user.ID)

	_, err = f.checklist.Remove(ctx, user.ID, b.ID)
	require.NoError(t, err)
	_, err = f.checklist.Remove(ctx, user.ID, c.ID)
	require.NoError(t, err)
	f.assertCounters(t, user.ID)

	var peaks []models.Peak
	require.NoError(t, f.db.Order("id").Find(&peaks).Error)
	assert.Equal(t, int64(1), peaks[0].ClimbCount)
	assert.Equal(t, int64(0), peaks[1].ClimbCount)
	assert.Equal(t, int64(0), peaks[2].ClimbCount)
}

func TestFailedTransactionLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "ana")
	peak := testutil.CreatePeak(t, f.db, "Triglav", 2864, models.RangeJulianAlps)
	testutil.CreateAchievement(t, f.db, "Očak", "Obišči Triglav")
	_, err := f.checklist.Add(ctx, user.ID, peak.ID)
	require.NoError(t, err)

	committed := observability.CounterTransactions.WithLabelValues("checklist_visit", observability.OutcomeCommitted)
	rolledBack := observability.CounterTransactions.WithLabelValues("checklist_visit", observability.OutcomeRolledBack)
	committedBefore := promtestutil.ToFloat64(committed)
	rolledBackBefore := promtestutil.ToFloat64(rolledBack)

	boom := errors.New("boom")
	err = f.uow.Do(ctx, func(tx *gorm.DB) error {
		res, err := f.checklist.Visit(database.WithTx(ctx, tx), user.ID, peak.ID)
		require.NoError(t, err)
		require.Len(t, res.NewAchievements, 1)
		assert.Empty(t, f.pub.types(user.ID), "nothing is announced before the outer commit")
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, f.pub.types(user.ID), "unlock event must not outlive the rollback")
	assert.Equal(t, committedBefore, promtestutil.ToFloat64(committed))
	assert.Equal(t, rolledBackBefore+1, promtestutil.ToFloat64(rolledBack))

	u := testutil.Reload(t, f.db, user.ID)
	assert.Equal(t, int64(1), u.PeaksCount)
	assert.Equal(t, int64(0), u.FinishedPeaksCount)
	assert.Equal(t, int64(0), u.AchievementsCount)
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.UserAchievement{}, ""))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.ForumPost{}, ""))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.ChecklistItem{}, "status = ?", models.ChecklistVisited))

	var reloaded models.Peak
	require.NoError(t, f.db.First(&reloaded, peak.ID).Error)
	assert.Equal(t, int64(0), reloaded.ClimbCount)
	f.assertCounters(t, user.ID)
}

func TestFailedTransactionKeepsRemovedPictures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "nejc")
	peak := testutil.CreatePeak(t, f.db, "Stol", 2236, models.RangeKaravanke)
	testutil.CreateAchievement(t, f.db, "Prvi", "Obišči 1 vrh")
	f.climb(t, user.ID, peak.ID)
	item, err := f.checklist.AddPictures(ctx, user.ID, peak.ID, []UploadFile{pngUpload(t, "stol.png")})
	require.NoError(t, err)
	eventsBefore := len(f.pub.types(user.ID))

	boom := errors.New("boom")
	err = f.uow.Do(ctx, func(tx *gorm.DB) error {
		res, err := f.checklist.Remove(database.WithTx(ctx, tx), user.ID, peak.ID)
		require.NoError(t, err)
		require.Len(t, res.RevokedAchievements, 1)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, f.store.DeletedURLs(), "pictures of a surviving item must stay in storage")
	assert.Len(t, f.pub.types(user.ID), eventsBefore, "no revoke event after rollback")
	kept, err := f.checklistRep.Get(ctx, user.ID, peak.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, item.Pictures, kept.Pictures)
	f.assertCounters(t, user.ID)
}

func TestFailedTransactionDiscardsAddedPictures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "zala")
	peak := testutil.CreatePeak(t, f.db, "Snežnik", 1796, models.RangeOther)
	f.climb(t, user.ID, peak.ID)

	boom := errors.New("boom")
	var added []string
	err := f.uow.Do(ctx, func(tx *gorm.DB) error {
		item, err := f.checklist.AddPictures(database.WithTx(ctx, tx), user.ID, peak.ID, []UploadFile{pngUpload(t, "a.png")})
		require.NoError(t, err)
		added = item.Pictures
		assert.Empty(t, f.store.DeletedURLs())
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.ElementsMatch(t, added, f.store.DeletedURLs())
}

func TestRevokeFiveToThree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "luka")
	other := testutil.CreateUser(t, f.db, "maja")
	five := testutil.CreateAchievement(t, f.db, "Petica", "Obišči 5 vrhov")
	testutil.CreateAchievement(t, f.db, "Trojka", "Obišči 3 vrhove")

	names := []string{"Storžič", "Krn", "Rodica", "Vogel", "Porezen"}
	var peaks []*models.Peak
	for i, name := range names {
		p := testutil.CreatePeak(t, f.db, name, 1500+i*100, models.RangeOther)
		peaks = append(peaks, p)
		f.climb(t, user.ID, p.ID)
	}
	require.Equal(t, int64(2), testutil.Reload(t, f.db, user.ID).AchievementsCount)

	var announcement models.ForumPost
	require.NoError(t, f.db.Where("achievement_id = ?", five.ID).First(&announcement).Error)
	_, err := f.comments.CreateComment(ctx, CreateCommentInput{UserID: other.ID, PostID: announcement.ID, Content: "Bravo!"})
	require.NoError(t, err)
	_, err = f.posts.ToggleLike(ctx, other.ID, announcement.ID)
	require.NoError(t, err)

	res, err := f.checklist.Remove(ctx, user.ID, peaks[4].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Petica"}, titles(res.RevokedAchievements))

	res, err = f.checklist.Remove(ctx, user.ID, peaks[3].ID)
	require.NoError(t, err)
	assert.Empty(t, res.RevokedAchievements)

	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.ForumPost{}, "id = ?", announcement.ID))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Comment{}, "post_id = ?", announcement.ID))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.PostLike{}, "post_id = ?", announcement.ID))
	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.ForumPost{}, "user_id = ?", user.ID))
	f.assertCounters(t, user.ID)
	assert.Equal(t, int64(1), testutil.Reload(t, f.db, user.ID).AchievementsCount)
	assert.Contains(t, f.pub.types(user.ID), notifications.EventAchievementRevoked)
}

func TestRegionCompletionBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "eva")
	testutil.CreateAchievement(t, f.db, "Pohorski zmaj", "Obišči vse vrhove na Pohorju")
	a := testutil.CreatePeak(t, f.db, "Črni vrh", 1543, models.RangePohorje)
	b := testutil.CreatePeak(t, f.db, "Velika Kopa", 1542, models.RangePohorje)
	c := testutil.CreatePeak(t, f.db, "Rogla", 1517, models.RangePohorje)

	assert.Empty(t, f.climb(t, user.ID, a.ID).NewAchievements)
	assert.Empty(t, f.climb(t, user.ID, b.ID).NewAchievements)
	assert.Equal(t, []string{"Pohorski zmaj"}, titles(f.climb(t, user.ID, c.ID).NewAchievements))

	res, err := f.checklist.Remove(ctx, user.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pohorski zmaj"}, titles(res.RevokedAchievements))
	f.assertCounters(t, user.ID)
}

func TestUnknownCriteriaAreNeverAwardedOrRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "bor")
	moon := testutil.CreateAchievement(t, f.db, "Luna", "fly to the moon")
	peak := testutil.CreatePeak(t, f.db, "Snežnik", 1796, models.RangeOther)

	assert.Empty(t, f.climb(t, user.ID, peak.ID).NewAchievements)

	// An unknown achievement granted by hand stays after the stats drop.
	require.NoError(t, f.achRep.Grant(ctx, user.ID, []uint{moon.ID}, testutil.Date(2024, 7, 1)))
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", user.ID).Update("achievements_count", 1).Error)

	res, err := f.checklist.Remove(ctx, user.ID, peak.ID)
	require.NoError(t, err)
	assert.Empty(t, res.RevokedAchievements)
	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.UserAchievement{}, "user_id = ?", user.ID))
	f.assertCounters(t, user.ID)
}

func TestTriglavScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "urban")
	testutil.CreateAchievement(t, f.db, "Prvi koraki", "Obišči 1 vrh")
	testutil.CreateAchievement(t, f.db, "Petica", "Obišči 5 vrhov")
	testutil.CreateAchievement(t, f.db, "Očak", "Obišči Triglav")
	testutil.CreateAchievement(t, f.db, "Dvatisočak", "Obišči vrh nad 2000 m")
	triglav := testutil.CreatePeak(t, f.db, "Triglav", 2864, models.RangeJulianAlps)

	res := f.climb(t, user.ID, triglav.ID)
	assert.ElementsMatch(t, []string{"Prvi koraki", "Očak", "Dvatisočak"}, titles(res.NewAchievements))
	assert.Equal(t, int64(3), testutil.Reload(t, f.db, user.ID).AchievementsCount)

	removed, err := f.checklist.Remove(ctx, user.ID, triglav.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Prvi koraki", "Očak", "Dvatisočak"}, titles(removed.RevokedAchievements))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.ForumPost{}, ""))
	f.assertCounters(t, user.ID)
}

func TestCountInRegionRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "klara")
	testutil.CreateAchievement(t, f.db, "Karavanški par", "Obišči 2 vrha v Karavankah")
	stol := testutil.CreatePeak(t, f.db, "Stol", 2236, models.RangeKaravanke)
	begunjscica := testutil.CreatePeak(t, f.db, "Begunjščica", 2060, models.RangeKaravanke)

	assert.Empty(t, f.climb(t, user.ID, stol.ID).NewAchievements)
	assert.Equal(t, []string{"Karavanški par"}, titles(f.climb(t, user.ID, begunjscica.ID).NewAchievements))

	res, err := f.checklist.Remove(ctx, user.ID, stol.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Karavanški par"}, titles(res.RevokedAchievements))
	f.assertCounters(t, user.ID)
}

func TestUserAchievements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "rok")
	testutil.CreateAchievement(t, f.db, "Prvi koraki", "Obišči 1 vrh")
	f.climb(t, user.ID, testutil.CreatePeak(t, f.db, "Kredarica", 2514, models.RangeJulianAlps).ID)

	list, err := f.achievements.UserAchievements(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Prvi koraki", list[0].Achievement.Title)

	_, err = f.achievements.UserAchievements(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	catalog, err := f.achievements.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Prvi koraki"}, achievementTitles(catalog))
}
