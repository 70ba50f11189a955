package service

import (
	"context"
	"log/slog"

	"gorahrib/internal/cache"
	"gorahrib/internal/database"
	"gorahrib/internal/middleware"
	"gorahrib/internal/models"
	"gorahrib/internal/repository"
	"gorahrib/internal/storage"

	"gorm.io/gorm"
)

// Stats are the totals shown on the admin dashboard.
type Stats struct {
	TotalUsers        int64 `json:"totalUsers"`
	TotalPeaks        int64 `json:"totalPeaks"`
	TotalVisited      int64 `json:"totalVisited"`
	TotalPosts        int64 `json:"totalPosts"`
	TotalAchievements int64 `json:"totalAchievements"`
}

// AdminService holds the operations behind the ADMIN role.
type AdminService struct {
	uow          *database.UnitOfWork
	users        repository.UserRepository
	peaks        repository.PeakRepository
	checklist    repository.ChecklistRepository
	achievements repository.AchievementRepository
	friends      repository.FriendRepository
	posts        repository.PostRepository
	comments     repository.CommentRepository
	likes        repository.LikeRepository
	store        storage.ObjectStore
}

func NewAdminService(
	uow *database.UnitOfWork,
	users repository.UserRepository,
	peaks repository.PeakRepository,
	checklist repository.ChecklistRepository,
	achievements repository.AchievementRepository,
	friends repository.FriendRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	likes repository.LikeRepository,
	store storage.ObjectStore,
) *AdminService {
	return &AdminService{
		uow:          uow,
		users:        users,
		peaks:        peaks,
		checklist:    checklist,
		achievements: achievements,
		friends:      friends,
		posts:        posts,
		comments:     comments,
		likes:        likes,
		store:        store,
	}
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.users.List(ctx, limit, offset)
}

// ToggleBan flips a user between ACTIVE and INACTIVE. Admins cannot be banned.
func (s *AdminService) ToggleBan(ctx context.Context, targetID uint) (*models.User, error) {
	var user *models.User
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		user, err = s.users.WithTx(tx).GetByID(ctx, targetID)
		if err != nil {
			return err
		}
		if user.IsAdmin() {
			return models.NewForbiddenError("Admins cannot be banned")
		}
		if user.IsActive() {
			user.Status = models.UserStatusInactive
		} else {
			user.Status = models.UserStatusActive
		}
		return s.users.WithTx(tx).UpdateFields(ctx, targetID, map[string]interface{}{"status": user.Status})
	})
	if err != nil {
		return nil, err
	}

	database.AfterCommit(ctx, func() {
		cache.InvalidateUser(ctx, targetID)
		middleware.Logger.InfoContext(ctx, "user status changed",
			slog.Uint64("target_user_id", uint64(targetID)),
			slog.String("status", string(user.Status)))
	})
	return user, nil
}

// DeleteUser removes a user with everything they own. Counters on rows that
// survive (friends, other users' posts, peaks) are decremented in the same
// transaction. Pictures are deleted after commit.
func (s *AdminService) DeleteUser(ctx context.Context, adminID, targetID uint) error {
	if adminID == targetID {
		return models.NewValidationError("You cannot delete your own account here")
	}

	var (
		pictures  []string
		friendIDs []uint
	)
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		user, err := s.users.WithTx(tx).GetByID(ctx, targetID)
		if err != nil {
			return err
		}
		if user.IsAdmin() {
			return models.NewForbiddenError("Admins cannot be deleted")
		}
		if user.ProfilePicture != "" {
			pictures = append(pictures, user.ProfilePicture)
		}

		friendIDs, err = s.friends.WithTx(tx).FriendIDs(ctx, targetID)
		if err != nil {
			return err
		}
		for _, id := range friendIDs {
			if err := s.users.WithTx(tx).AdjustCounters(ctx, id, map[string]int{
				repository.ColFriendsCount: -1,
			}); err != nil {
				return err
			}
		}

		postPictures, err := s.deletePostsAndActivity(ctx, tx, targetID)
		if err != nil {
			return err
		}
		pictures = append(pictures, postPictures...)

		items, err := s.checklist.WithTx(tx).DeleteByUser(ctx, targetID)
		if err != nil {
			return err
		}
		for _, item := range items {
			pictures = append(pictures, item.Pictures...)
			if !item.IsVisited() {
				continue
			}
			if err := s.peaks.WithTx(tx).AdjustClimbCount(ctx, item.PeakID, -1); err != nil {
				return err
			}
		}

		if err := s.achievements.WithTx(tx).DeleteByUser(ctx, targetID); err != nil {
			return err
		}
		if err := s.friends.WithTx(tx).DeleteByUser(ctx, targetID); err != nil {
			return err
		}
		return s.users.WithTx(tx).Delete(ctx, targetID)
	})
	return settle(ctx, "admin_delete_user", err, func() {
		discardFiles(ctx, s.store, dedupe(pictures))
		cache.InvalidateUser(ctx, append(friendIDs, targetID)...)
		cache.InvalidateLeaderboard(ctx)
		cache.InvalidatePattern(ctx, cache.PeakListPattern)
		middleware.Logger.InfoContext(ctx, "user deleted",
			slog.Uint64("target_user_id", uint64(targetID)),
			slog.Int("friends", len(friendIDs)))
	})
}

// deletePostsAndActivity removes the user's posts with their comments and
// likes, then the user's comments and likes on other posts, fixing those
// posts' counters. It returns the pictures of the removed posts.
func (s *AdminService) deletePostsAndActivity(ctx context.Context, tx *gorm.DB, userID uint) ([]string, error) {
	owned, err := s.posts.WithTx(tx).OwnedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	ownedIDs := make([]uint, 0, len(owned))
	isOwned := make(map[uint]bool, len(owned))
	var pictures []string
	for _, p := range owned {
		ownedIDs = append(ownedIDs, p.ID)
		isOwned[p.ID] = true
		pictures = append(pictures, p.Pictures...)
	}

	commentCounts, err := s.comments.WithTx(tx).CountByPostForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for postID, n := range commentCounts {
		if isOwned[postID] {
			continue
		}
		if err := s.posts.WithTx(tx).AdjustCommentCount(ctx, postID, -n); err != nil {
			return nil, err
		}
	}
	likeCounts, err := s.likes.WithTx(tx).CountByPostForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for postID, n := range likeCounts {
		if isOwned[postID] {
			continue
		}
		if err := s.posts.WithTx(tx).AdjustLikes(ctx, postID, -n); err != nil {
			return nil, err
		}
	}

	if err := s.comments.WithTx(tx).DeleteByPosts(ctx, ownedIDs); err != nil {
		return nil, err
	}
	if err := s.likes.WithTx(tx).DeleteByPosts(ctx, ownedIDs); err != nil {
		return nil, err
	}
	if err := s.comments.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.likes.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.posts.WithTx(tx).DeleteByIDs(ctx, ownedIDs); err != nil {
		return nil, err
	}
	return pictures, nil
}

// Stats returns platform totals.
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if st.TotalPeaks, err = s.peaks.Count(ctx); err != nil {
		return nil, err
	}
	if st.TotalVisited, err = s.checklist.CountVisited(ctx); err != nil {
		return nil, err
	}
	if st.TotalPosts, err = s.posts.Count(ctx); err != nil {
		return nil, err
	}
	if st.TotalAchievements, err = s.achievements.Count(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
