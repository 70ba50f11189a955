package repository

import (
	"context"
	"time"

	"gorahrib/internal/models"

	"gorm.io/gorm"
)

// FriendRepository defines the interface for friend data operations
type FriendRepository interface {
	WithTx(tx *gorm.DB) FriendRepository
	Create(ctx context.Context, friendship *models.Friendship) error
	GetByID(ctx context.Context, id uint) (*models.Friendship, error)
	GetFriendshipBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error)
	GetFriends(ctx context.Context, userID uint) ([]models.User, error)
	FriendIDs(ctx context.Context, userID uint) ([]uint, error)
	GetPendingRequests(ctx context.Context, userID uint) ([]models.Friendship, error)
	GetSentRequests(ctx context.Context, userID uint) ([]models.Friendship, error)
	Accept(ctx context.Context, friendshipID uint, at time.Time) error
	Delete(ctx context.Context, friendshipID uint) error
	DeleteByUser(ctx context.Context, userID uint) error
}

// friendRepository implements FriendRepository
type friendRepository struct {
	scope
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{scope{db: db}}
}

func (r *friendRepository) WithTx(tx *gorm.DB) FriendRepository {
	return &friendRepository{r.bind(tx)}
}

func (r *friendRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	if err := r.writer(ctx).Omit("Requester", "Addressee").Create(friendship).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Friend request already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetByID(ctx context.Context, id uint) (*models.Friendship, error) {
	var friendship models.Friendship
	if err := r.reader(ctx).Preload("Requester").Preload("Addressee").First(&friendship, id).Error; err != nil {
		return nil, notFoundOr(err, models.NewNotFoundMessage("Friend request not found"))
	}
	return &friendship, nil
}

// GetFriendshipBetweenUsers returns the row for the unordered pair, or (nil, nil).
func (r *friendRepository) GetFriendshipBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error) {
	var rows []models.Friendship
	if err := r.reader(ctx).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			userID1, userID2, userID2, userID1).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *friendRepository) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	users := []models.User{}
	ids, err := r.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.reader(ctx).Where("id IN ?", ids).Order("username ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// FriendIDs returns the ids of the user's accepted friends.
func (r *friendRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var rows []models.Friendship
	if err := r.reader(ctx).
		Select("requester_id", "addressee_id").
		Where("status = ? AND (requester_id = ? OR addressee_id = ?)",
			models.FriendshipStatusAccepted, userID, userID).
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]uint, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.OtherUserID(userID))
	}
	return ids, nil
}

func (r *friendRepository) GetPendingRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return r.pending(ctx, "addressee_id = ?", userID)
}

func (r *friendRepository) GetSentRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return r.pending(ctx, "requester_id = ?", userID)
}

func (r *friendRepository) pending(ctx context.Context, side string, userID uint) ([]models.Friendship, error) {
	friendships := []models.Friendship{}
	if err := r.reader(ctx).
		Where(side, userID).
		Where("status = ?", models.FriendshipStatusPending).
		Preload("Requester").
		Preload("Addressee").
		Order("requested_at DESC").
		Find(&friendships).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return friendships, nil
}

// Accept flips a pending row to Accepted. Only pending rows match, so a
// second accept of the same request is NotFound.
func (r *friendRepository) Accept(ctx context.Context, friendshipID uint, at time.Time) error {
	res := r.writer(ctx).
		Model(&models.Friendship{}).
		Where("id = ? AND status = ?", friendshipID, models.FriendshipStatusPending).
		Updates(map[string]interface{}{
			"status":      models.FriendshipStatusAccepted,
			"accepted_at": at,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Friend request not found")
	}
	return nil
}

func (r *friendRepository) Delete(ctx context.Context, friendshipID uint) error {
	res := r.writer(ctx).Delete(&models.Friendship{}, friendshipID)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Friendship not found")
	}
	return nil
}

// DeleteByUser removes every friendship row the user takes part in.
func (r *friendRepository) DeleteByUser(ctx context.Context, userID uint) error {
	if err := r.writer(ctx).
		Where("requester_id = ? OR addressee_id = ?", userID, userID).
		Delete(&models.Friendship{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
