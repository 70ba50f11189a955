package service

import (
	"context"
	"sort"
	"time"

	"gorahrib/internal/cache"
	"gorahrib/internal/database"
	"gorahrib/internal/models"
	"gorahrib/internal/notifications"
	"gorahrib/internal/repository"

	"gorm.io/gorm"
)

// FriendService provides friend-request and friendship business logic.
// Accepting and removing a friendship update friends_count of both users in
// the same transaction as the friendship row.
type FriendService struct {
	uow        *database.UnitOfWork
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	checklist  repository.ChecklistRepository
	publisher  EventPublisher
	now        func() time.Time
}

// NewFriendService returns a new FriendService.
func NewFriendService(
	uow *database.UnitOfWork,
	friendRepo repository.FriendRepository,
	userRepo repository.UserRepository,
	checklist repository.ChecklistRepository,
	publisher EventPublisher,
) *FriendService {
	return &FriendService{
		uow:        uow,
		friendRepo: friendRepo,
		userRepo:   userRepo,
		checklist:  checklist,
		publisher:  publisher,
		now:        time.Now,
	}
}

// SendFriendRequest sends a friend request to the target user. A request in
// either direction, or an existing friendship, is a Conflict.
func (s *FriendService) SendFriendRequest(ctx context.Context, userID, targetUserID uint) (*models.Friendship, error) {
	if userID == targetUserID {
		return nil, models.NewValidationError("Cannot send friend request to yourself")
	}

	sender, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, targetUserID); err != nil {
		return nil, err
	}

	existing, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch {
		case existing.Status == models.FriendshipStatusAccepted:
			return nil, models.NewConflictError("You are already friends")
		case existing.RequesterID == userID:
			return nil, models.NewConflictError("Friend request already sent")
		default:
			return nil, models.NewConflictError("You already have a pending friend request from this user")
		}
	}

	friendship := &models.Friendship{
		RequesterID: userID,
		AddresseeID: targetUserID,
		Status:      models.FriendshipStatusPending,
	}
	if err := s.friendRepo.Create(ctx, friendship); err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, targetUserID, notifications.EventFriendRequest, map[string]interface{}{
		"request_id": friendship.ID,
		"from_user": map[string]interface{}{
			"id":       sender.ID,
			"username": sender.Username,
		},
	})

	return s.friendRepo.GetByID(ctx, friendship.ID)
}

// GetPendingRequests returns pending friend requests for the user.
func (s *FriendService) GetPendingRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.friendRepo.GetPendingRequests(ctx, userID)
}

// GetSentRequests returns friend requests sent by the user.
func (s *FriendService) GetSentRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.friendRepo.GetSentRequests(ctx, userID)
}

// AcceptFriendRequest accepts a pending friend request addressed to userID.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, userID, requestID uint) (*models.Friendship, error) {
	var friendship *models.Friendship
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		friendship, err = s.friendRepo.WithTx(tx).GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if friendship.AddresseeID != userID {
			return models.NewForbiddenError("You can only accept friend requests sent to you")
		}
		if friendship.Status != models.FriendshipStatusPending {
			return models.NewConflictError("Friend request is not pending")
		}

		acceptedAt := s.now().UTC()
		if err := s.friendRepo.WithTx(tx).Accept(ctx, requestID, acceptedAt); err != nil {
			return err
		}
		friendship.Status = models.FriendshipStatusAccepted
		friendship.AcceptedAt = &acceptedAt

		return s.adjustFriendsCount(ctx, tx, 1, friendship.RequesterID, friendship.AddresseeID)
	})
	err = settle(ctx, "friend_accept", err, func() {
		cache.InvalidateUser(ctx, friendship.RequesterID, friendship.AddresseeID)
		publish(ctx, s.publisher, friendship.RequesterID, notifications.EventFriendAccepted, map[string]interface{}{
			"request_id": friendship.ID,
			"user_id":    userID,
		})
	})
	if err != nil {
		return nil, err
	}
	return friendship, nil
}

// RejectFriendRequest rejects or cancels a pending friend request.
func (s *FriendService) RejectFriendRequest(ctx context.Context, userID, requestID uint) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if !friendship.Involves(userID) {
		return nil, models.NewForbiddenError("You can only reject or cancel your own pending requests")
	}
	if friendship.Status != models.FriendshipStatusPending {
		return nil, models.NewValidationError("Friend request is not pending")
	}

	if err := s.friendRepo.Delete(ctx, requestID); err != nil {
		return nil, err
	}

	return friendship, nil
}

// GetFriends returns the list of friends for the user.
func (s *FriendService) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	return s.friendRepo.GetFriends(ctx, userID)
}

// GetFriendshipStatus returns the friendship status between two users.
func (s *FriendService) GetFriendshipStatus(ctx context.Context, userID, targetUserID uint) (string, uint, *models.Friendship, error) {
	if _, err := s.userRepo.GetByID(ctx, targetUserID); err != nil {
		return "", 0, nil, err
	}

	friendship, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return "", 0, nil, err
	}

	status := "none"
	var requestID uint
	if friendship != nil {
		switch friendship.Status {
		case models.FriendshipStatusAccepted:
			status = "friends"
		case models.FriendshipStatusPending:
			requestID = friendship.ID
			if friendship.RequesterID == userID {
				status = "pending_sent"
			} else {
				status = "pending_received"
			}
		}
	}

	return status, requestID, friendship, nil
}

// RemoveFriend removes the friendship between two users.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, targetUserID uint) (*models.Friendship, error) {
	var friendship *models.Friendship
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		friendship, err = s.friendRepo.WithTx(tx).GetFriendshipBetweenUsers(ctx, userID, targetUserID)
		if err != nil {
			return err
		}
		if friendship == nil || friendship.Status != models.FriendshipStatusAccepted {
			return models.NewNotFoundMessage("Friendship not found")
		}
		if err := s.friendRepo.WithTx(tx).Delete(ctx, friendship.ID); err != nil {
			return err
		}
		return s.adjustFriendsCount(ctx, tx, -1, userID, targetUserID)
	})
	err = settle(ctx, "friend_remove", err, func() {
		cache.InvalidateUser(ctx, userID, targetUserID)
	})
	if err != nil {
		return nil, err
	}
	return friendship, nil
}

func (s *FriendService) adjustFriendsCount(ctx context.Context, tx *gorm.DB, delta int, userIDs ...uint) error {
	for _, id := range userIDs {
		if err := s.userRepo.WithTx(tx).AdjustCounters(ctx, id, map[string]int{
			repository.ColFriendsCount: delta,
		}); err != nil {
			return err
		}
	}
	return nil
}

// FriendProfile is what a user sees of an accepted friend.
type FriendProfile struct {
	User         *models.User  `json:"user"`
	VisitedPeaks []models.Peak `json:"visitedPeaks"`
}

// GetFriendProfile returns a friend's profile and visited peaks. Only
// accepted friends may view it.
func (s *FriendService) GetFriendProfile(ctx context.Context, userID, friendID uint) (*FriendProfile, error) {
	if err := s.requireFriends(ctx, userID, friendID); err != nil {
		return nil, err
	}
	friend, err := s.userRepo.GetByID(ctx, friendID)
	if err != nil {
		return nil, err
	}
	peaks, err := s.checklist.VisitedPeaks(ctx, friendID)
	if err != nil {
		return nil, err
	}
	return &FriendProfile{User: friend, VisitedPeaks: peaks}, nil
}

func (s *FriendService) requireFriends(ctx context.Context, userID, otherID uint) error {
	friendship, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if friendship == nil || friendship.Status != models.FriendshipStatusAccepted {
		return models.NewForbiddenError("You can only view profiles of your friends")
	}
	return nil
}

// FriendVisit is one friend who climbed a peak.
type FriendVisit struct {
	UserID      uint       `json:"userId"`
	Username    string     `json:"username"`
	VisitedDate *time.Time `json:"visitedDate,omitempty"`
}

// PeakVisitors groups the friends who climbed the same peak.
type PeakVisitors struct {
	Peak    models.Peak   `json:"peak"`
	Friends []FriendVisit `json:"friends"`
}

// GetFriendsPeaksMap returns every peak visited by at least one friend,
// ordered by peak name.
func (s *FriendService) GetFriendsPeaksMap(ctx context.Context, userID uint) ([]PeakVisitors, error) {
	friends, err := s.friendRepo.GetFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := []PeakVisitors{}
	if len(friends) == 0 {
		return result, nil
	}

	names := make(map[uint]string, len(friends))
	ids := make([]uint, 0, len(friends))
	for _, f := range friends {
		names[f.ID] = f.Username
		ids = append(ids, f.ID)
	}

	items, err := s.checklist.VisitedByUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	byPeak := make(map[uint]int)
	for _, item := range items {
		idx, ok := byPeak[item.PeakID]
		if !ok {
			idx = len(result)
			byPeak[item.PeakID] = idx
			result = append(result, PeakVisitors{Peak: item.Peak})
		}
		result[idx].Friends = append(result[idx].Friends, FriendVisit{
			UserID:      item.UserID,
			Username:    names[item.UserID],
			VisitedDate: item.VisitedDate,
		})
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Peak.Name < result[j].Peak.Name })
	return result, nil
}
