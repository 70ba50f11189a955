package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"gorahrib/internal/database"
	"gorahrib/internal/models"
	"gorahrib/internal/repository"
	"gorahrib/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type publishedEvent struct {
	UserID uint
	Type   string
}

// publisherStub records realtime events instead of sending them.
type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *publisherStub) PublishUser(_ context.Context, userID uint, payload string) error {
	var ev struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Type: ev.Type})
	return nil
}

func (p *publisherStub) types(userID uint) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if ev.UserID == userID {
			out = append(out, ev.Type)
		}
	}
	return out
}

// fixture wires every service over one in-memory database.
type fixture struct {
	db  *gorm.DB
	uow *database.UnitOfWork

	users        repository.UserRepository
	peaks        repository.PeakRepository
	checklistRep repository.ChecklistRepository
	achRep       repository.AchievementRepository
	friendRep    repository.FriendRepository
	postRep      repository.PostRepository
	commentRep   repository.CommentRepository
	likeRep      repository.LikeRepository

	store *testutil.ObjectStoreStub
	pub   *publisherStub

	achievements *AchievementService
	checklist    *ChecklistService
	friends      *FriendService
	posts        *PostService
	comments     *CommentService
	userSvc      *UserService
	admin        *AdminService
	leaderboard  *LeaderboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &fixture{
		db:           db,
		uow:          database.NewUnitOfWork(db),
		users:        repository.NewUserRepository(db),
		peaks:        repository.NewPeakRepository(db),
		checklistRep: repository.NewChecklistRepository(db),
		achRep:       repository.NewAchievementRepository(db),
		friendRep:    repository.NewFriendRepository(db),
		postRep:      repository.NewPostRepository(db),
		commentRep:   repository.NewCommentRepository(db),
		likeRep:      repository.NewLikeRepository(db),
		store:        testutil.NewObjectStoreStub(),
		pub:          &publisherStub{},
	}
	images := NewImageProcessor(nil)

	f.achievements = NewAchievementService(f.achRep, f.checklistRep, f.peaks, f.users, f.postRep, f.commentRep, f.likeRep, f.pub)
	f.checklist = NewChecklistService(f.uow, f.checklistRep, f.peaks, f.users, f.achievements, f.store, images)
	f.friends = NewFriendService(f.uow, f.friendRep, f.users, f.checklistRep, f.pub)
	f.posts = NewPostService(f.uow, f.postRep, f.commentRep, f.likeRep, f.friendRep, f.peaks, f.checklistRep, f.store, images, f.pub)
	f.comments = NewCommentService(f.uow, f.commentRep, f.postRep, f.pub)
	f.userSvc = NewUserService(f.uow, f.users, f.checklistRep, f.store, images)
	f.admin = NewAdminService(f.uow, f.users, f.peaks, f.checklistRep, f.achRep, f.friendRep, f.postRep, f.commentRep, f.likeRep, f.store)
	f.leaderboard = NewLeaderboardService(f.users, f.friendRep)
	return f
}

// climb adds the peak to the checklist and marks it visited.
func (f *fixture) climb(t *testing.T, userID, peakID uint) *VisitResult {
	t.Helper()
	ctx := context.Background()
	_, err := f.checklist.Add(ctx, userID, peakID)
	require.NoError(t, err)
	res, err := f.checklist.Visit(ctx, userID, peakID)
	require.NoError(t, err)
	return res
}

// befriend creates an accepted friendship through the service.
func (f *fixture) befriend(t *testing.T, a, b uint) {
	t.Helper()
	ctx := context.Background()
	req, err := f.friends.SendFriendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = f.friends.AcceptFriendRequest(ctx, b, req.ID)
	require.NoError(t, err)
}

// assertCounters checks every denormalized counter of the user against the
// rows it is derived from.
func (f *fixture) assertCounters(t *testing.T, userID uint) {
	t.Helper()
	u := testutil.Reload(t, f.db, userID)
	require.Equal(t, testutil.CountRows(t, f.db, &models.ChecklistItem{}, "user_id = ?", userID), u.PeaksCount, "peaks_count")
	require.Equal(t, testutil.CountRows(t, f.db, &models.ChecklistItem{}, "user_id = ? AND status = ?", userID, models.ChecklistVisited), u.FinishedPeaksCount, "finished_peaks_count")
	require.Equal(t, testutil.CountRows(t, f.db, &models.UserAchievement{}, "user_id = ?", userID), u.AchievementsCount, "achievements_count")
	require.Equal(t, testutil.CountRows(t, f.db, &models.Friendship{}, "status = ? AND (requester_id = ? OR addressee_id = ?)", models.FriendshipStatusAccepted, userID, userID), u.FriendsCount, "friends_count")
}

func titles(list []models.AchievementSummary) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Title)
	}
	return out
}

func achievementTitles(list []models.Achievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Title)
	}
	return out
}
