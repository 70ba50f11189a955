package repository

import (
	"context"
	"time"

	"gorahrib/internal/models"
	"gorahrib/internal/observability"

	"gorm.io/gorm"
)

// AchievementRepository reads the catalog and manages unlock records.
type AchievementRepository interface {
	WithTx(tx *gorm.DB) AchievementRepository
	Catalog(ctx context.Context) ([]models.Achievement, error)
	HeldIDs(ctx context.Context, userID uint) ([]uint, error)
	ListForUser(ctx context.Context, userID uint) ([]models.UserAchievement, error)
	Grant(ctx context.Context, userID uint, achievementIDs []uint, at time.Time) error
	Revoke(ctx context.Context, userID uint, achievementIDs []uint) (int64, error)
	DeleteByUser(ctx context.Context, userID uint) error
	Count(ctx context.Context) (int64, error)
}

type achievementRepository struct {
	scope
}

// NewAchievementRepository returns a new AchievementRepository implementation.
func NewAchievementRepository(db *gorm.DB) AchievementRepository {
	return &achievementRepository{scope{db: db}}
}

func (r *achievementRepository) WithTx(tx *gorm.DB) AchievementRepository {
	return &achievementRepository{r.bind(tx)}
}

func (r *achievementRepository) Catalog(ctx context.Context) ([]models.Achievement, error) {
	defer observability.TrackQuery("catalog", "achievements")()
	list := []models.Achievement{}
	if err := r.reader(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return list, nil
}

// HeldIDs returns the ids of the achievements the user currently holds.
func (r *achievementRepository) HeldIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	if err := r.reader(ctx).Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Order("achievement_id ASC").
		Pluck("achievement_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *achievementRepository) ListForUser(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	list := []models.UserAchievement{}
	if err := r.reader(ctx).Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&list).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return list, nil
}

// Grant inserts one unlock record per achievement in a single statement. A
// concurrent grant of the same pair fails the statement with Conflict.
func (r *achievementRepository) Grant(ctx context.Context, userID uint, achievementIDs []uint, at time.Time) error {
	if len(achievementIDs) == 0 {
		return nil
	}
	rows := make([]models.UserAchievement, 0, len(achievementIDs))
	for _, id := range achievementIDs {
		rows = append(rows, models.UserAchievement{UserID: userID, AchievementID: id, UnlockedAt: at})
	}
	if err := r.writer(ctx).Omit("Achievement").Create(&rows).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Achievement already unlocked")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Revoke deletes the user's unlock records for the given achievements and
// returns how many rows went away.
func (r *achievementRepository) Revoke(ctx context.Context, userID uint, achievementIDs []uint) (int64, error) {
	if len(achievementIDs) == 0 {
		return 0, nil
	}
	res := r.writer(ctx).
		Where("user_id = ? AND achievement_id IN ?", userID, achievementIDs).
		Delete(&models.UserAchievement{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *achievementRepository) DeleteByUser(ctx context.Context, userID uint) error {
	if err := r.writer(ctx).Where("user_id = ?", userID).Delete(&models.UserAchievement{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *achievementRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.reader(ctx).Model(&models.Achievement{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
