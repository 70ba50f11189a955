package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorahrib/internal/achievement"
	"gorahrib/internal/database"
	"gorahrib/internal/middleware"
	"gorahrib/internal/models"
	"gorahrib/internal/notifications"
	"gorahrib/internal/observability"
	"gorahrib/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// AnnouncementTitle is the title of the forum post created for every unlock.
const AnnouncementTitle = "Ravnokar sem dosegel/a nov dosežek!"

// AchievementService awards and revokes achievements. Award and revoke run
// inside the caller's transaction and read everything through it.
type AchievementService struct {
	achievements repository.AchievementRepository
	checklist    repository.ChecklistRepository
	peaks        repository.PeakRepository
	users        repository.UserRepository
	posts        repository.PostRepository
	comments     repository.CommentRepository
	likes        repository.LikeRepository
	publisher    EventPublisher
	now          func() time.Time
}

// NewAchievementService returns a new AchievementService.
func NewAchievementService(
	achievements repository.AchievementRepository,
	checklist repository.ChecklistRepository,
	peaks repository.PeakRepository,
	users repository.UserRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	likes repository.LikeRepository,
	publisher EventPublisher,
) *AchievementService {
	return &AchievementService{
		achievements: achievements,
		checklist:    checklist,
		peaks:        peaks,
		users:        users,
		posts:        posts,
		comments:     comments,
		likes:        likes,
		publisher:    publisher,
		now:          time.Now,
	}
}

// Catalog returns every achievement.
func (s *AchievementService) Catalog(ctx context.Context) ([]models.Achievement, error) {
	return s.achievements.Catalog(ctx)
}

// UserAchievements returns the unlock records of a user, newest first.
func (s *AchievementService) UserAchievements(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.achievements.ListForUser(ctx, userID)
}

// evaluation is one consistent read of catalog, stats and held achievements.
type evaluation struct {
	catalog  achievement.Catalog
	eligible map[uint]struct{}
	held     []uint
}

func (s *AchievementService) evaluate(ctx context.Context, tx *gorm.DB, userID uint) (*evaluation, error) {
	list, err := s.achievements.WithTx(tx).Catalog(ctx)
	if err != nil {
		return nil, err
	}
	visited, err := s.checklist.WithTx(tx).VisitedPeaks(ctx, userID)
	if err != nil {
		return nil, err
	}
	perRange, err := s.peaks.WithTx(tx).CountByRange(ctx)
	if err != nil {
		return nil, err
	}
	held, err := s.achievements.WithTx(tx).HeldIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	catalog := achievement.ParseCatalog(list)
	stats := achievement.NewStats(visited, perRange)
	return &evaluation{
		catalog:  catalog,
		eligible: achievement.ComputeEligible(stats, catalog),
		held:     held,
	}, nil
}

// AwardNewAchievements grants every achievement the user now qualifies for
// and does not hold yet. Each grant gets an announcement post; a failed post
// is rolled back to its savepoint and logged. Calling it again without a stats
// change grants nothing.
func (s *AchievementService) AwardNewAchievements(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Achievement, error) {
	span, ctx := observability.NewSpan(ctx, "achievement.award", attribute.Int64("user.id", int64(userID)))
	defer span.End()

	ev, err := s.evaluate(ctx, tx, userID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	held := make(map[uint]bool, len(ev.held))
	for _, id := range ev.held {
		held[id] = true
	}
	awarded := []models.Achievement{}
	ids := []uint{}
	for _, e := range ev.catalog.Entries {
		if _, ok := ev.eligible[e.Achievement.ID]; ok && !held[e.Achievement.ID] {
			awarded = append(awarded, e.Achievement)
			ids = append(ids, e.Achievement.ID)
		}
	}
	if len(awarded) == 0 {
		return awarded, nil
	}

	if err := s.achievements.WithTx(tx).Grant(ctx, userID, ids, s.now()); err != nil {
		span.SetError(err)
		return nil, err
	}
	for i := range awarded {
		s.announce(ctx, tx, userID, awarded[i])
	}
	if err := s.users.WithTx(tx).AdjustCounters(ctx, userID, map[string]int{
		repository.ColAchievementsCount: len(awarded),
	}); err != nil {
		span.SetError(err)
		return nil, err
	}

	span.AddAttributes(attribute.Int("achievements.awarded", len(awarded)))
	return awarded, nil
}

// announce creates the unlock post inside a savepoint so a failure leaves the
// surrounding transaction usable.
func (s *AchievementService) announce(ctx context.Context, tx *gorm.DB, userID uint, a models.Achievement) {
	achievementID := a.ID
	post := &models.ForumPost{
		UserID:        userID,
		AchievementID: &achievementID,
		Title:         AnnouncementTitle,
		Content:       fmt.Sprintf("%s - %s", a.Title, a.Description),
		Category:      models.CategoryAchievement,
	}
	err := database.SavePoint(tx, fmt.Sprintf("announce_%d", a.ID), func(sp *gorm.DB) error {
		return s.posts.WithTx(sp).Create(ctx, post)
	})
	if err != nil {
		observability.AnnouncementFailures.Inc()
		middleware.Logger.WarnContext(ctx, "failed to create achievement announcement",
			slog.Uint64("user_id", uint64(userID)),
			slog.Uint64("achievement_id", uint64(a.ID)),
			slog.String("error", err.Error()))
	}
}

// RevokeStaleAchievements removes held achievements whose criteria no longer
// hold, together with their announcement posts and those posts' comments and
// likes. Achievements with unrecognized criteria, or no longer in the
// catalog, are left alone.
func (s *AchievementService) RevokeStaleAchievements(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Achievement, error) {
	span, ctx := observability.NewSpan(ctx, "achievement.revoke", attribute.Int64("user.id", int64(userID)))
	defer span.End()

	ev, err := s.evaluate(ctx, tx, userID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	revoked := []models.Achievement{}
	ids := []uint{}
	for _, id := range ev.held {
		entry, ok := ev.catalog.Lookup(id)
		if !ok || entry.Criterion.Kind == achievement.KindUnknown {
			continue
		}
		if _, still := ev.eligible[id]; !still {
			revoked = append(revoked, entry.Achievement)
			ids = append(ids, id)
		}
	}
	if len(revoked) == 0 {
		return revoked, nil
	}

	removed, err := s.achievements.WithTx(tx).Revoke(ctx, userID, ids)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if err := s.deleteAnnouncements(ctx, tx, userID, ids); err != nil {
		span.SetError(err)
		return nil, err
	}
	if err := s.users.WithTx(tx).AdjustCounters(ctx, userID, map[string]int{
		repository.ColAchievementsCount: -int(removed),
	}); err != nil {
		span.SetError(err)
		return nil, err
	}

	span.AddAttributes(attribute.Int("achievements.revoked", len(revoked)))
	return revoked, nil
}

func (s *AchievementService) deleteAnnouncements(ctx context.Context, tx *gorm.DB, userID uint, achievementIDs []uint) error {
	posts, err := s.posts.WithTx(tx).Announcements(ctx, userID, achievementIDs)
	if err != nil || len(posts) == 0 {
		return err
	}
	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}
	if err := s.comments.WithTx(tx).DeleteByPosts(ctx, postIDs); err != nil {
		return err
	}
	if err := s.likes.WithTx(tx).DeleteByPosts(ctx, postIDs); err != nil {
		return err
	}
	return s.posts.WithTx(tx).DeleteByIDs(ctx, postIDs)
}

// Published records metrics and pushes realtime events for a committed
// award or revoke. It must only be called after the transaction commits.
func (s *AchievementService) Published(ctx context.Context, userID uint, awarded, revoked []models.Achievement) {
	if len(awarded) > 0 {
		observability.AchievementsAwarded.Add(float64(len(awarded)))
		publish(ctx, s.publisher, userID, notifications.EventAchievementUnlocked, map[string]interface{}{
			"achievements": models.Summaries(awarded),
		})
	}
	if len(revoked) > 0 {
		observability.AchievementsRevoked.Add(float64(len(revoked)))
		publish(ctx, s.publisher, userID, notifications.EventAchievementRevoked, map[string]interface{}{
			"achievements": models.Summaries(revoked),
		})
	}
}
